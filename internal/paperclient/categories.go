// categories.go — локальный вывод категорий из списка статей.
package paperclient

// DefaultCategoryColor — цвет категории без сохранённого цвета.
const DefaultCategoryColor = "blue"

// DeriveCategories выводит категории из списка статей в порядке первого
// появления. Выведенные категории получают цвет по умолчанию.
func DeriveCategories(papers []Paper) []Category {
	seen := map[string]bool{}
	result := []Category{}
	for _, p := range papers {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		result = append(result, Category{
			Name:  p.Category,
			Color: DefaultCategoryColor,
		})
	}
	return result
}

// MergeCategories объединяет сохранённые категории с выведенными из статей.
// Сохранённые идут первыми; выведенные добавляются, если имя ещё не занято.
func MergeCategories(saved []Category, derived []Category) []Category {
	seen := map[string]bool{}
	result := make([]Category, 0, len(saved)+len(derived))
	for _, c := range saved {
		seen[c.Name] = true
		result = append(result, c)
	}
	for _, c := range derived {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		result = append(result, c)
	}
	return result
}
