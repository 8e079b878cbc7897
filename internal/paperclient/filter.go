// filter.go — локальная фильтрация списка статей.
package paperclient

import "strings"

// CategoryAll — значение фильтра «все категории».
const CategoryAll = "all"

// FilterPapers возвращает статьи, прошедшие фильтр по категории и поисковой
// строке. Категория CategoryAll пропускает все статьи. Поиск — вхождение
// подстроки в название или авторов без учёта регистра.
func FilterPapers(papers []Paper, category, query string) []Paper {
	query = strings.ToLower(strings.TrimSpace(query))

	result := []Paper{}
	for _, p := range papers {
		if category != CategoryAll && p.Category != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Title), query) &&
			!strings.Contains(strings.ToLower(p.Authors), query) {
			continue
		}
		result = append(result, p)
	}
	return result
}
