// paperctl — CLI для API Webpaper.
// Списки статей, загрузка PDF, правка метаданных, комментарии,
// категории и live-наблюдение за изменениями через SSE.
//
// Подключение задаётся флагами --server/--token или переменными
// окружения WPCTL_SERVER и WPCTL_TOKEN.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/webpaper/webpaper/internal/paperclient"
)

var (
	flagServer string
	flagToken  string
	flagJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "paperctl",
	Short: "CLI для сервиса Webpaper",
	Long: `paperctl — утилита командной строки для сервиса Webpaper.

Управление статьями: загрузка PDF, списки, правка метаданных, удаление,
комментарии, категории и live-наблюдение за изменениями.`,
	SilenceUsage: true,
}

// client создаёт API-клиент из флагов/окружения.
func client() *paperclient.Client {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return paperclient.New(flagServer, flagToken, logger)
}

// printJSON выводит значение как отформатированный JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPapers выводит список статей таблицей или JSON.
func printPapers(papers []paperclient.Paper) error {
	if flagJSON {
		return printJSON(papers)
	}
	for _, p := range papers {
		visibility := "private"
		if p.IsPublic {
			visibility = "public"
		}
		fmt.Printf("%s  %-8s  %-20s  %s — %s\n",
			p.ID, visibility, p.Category, p.Title, p.Authors)
	}
	fmt.Printf("Всего: %d\n", len(papers))
	return nil
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Профиль текущего пользователя",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := client().Me(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(profile)
	},
}

var (
	flagCategory string
	flagSearch   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Статьи текущего пользователя",
	RunE: func(cmd *cobra.Command, args []string) error {
		papers, err := client().ListOwn(cmd.Context())
		if err != nil {
			return err
		}
		return printPapers(paperclient.FilterPapers(papers, flagCategory, flagSearch))
	},
}

var sharedCmd = &cobra.Command{
	Use:   "shared",
	Short: "Публичные статьи всех пользователей",
	RunE: func(cmd *cobra.Command, args []string) error {
		papers, err := client().ListShared(cmd.Context())
		if err != nil {
			return err
		}
		return printPapers(paperclient.FilterPapers(papers, flagCategory, flagSearch))
	},
}

var getCmd = &cobra.Command{
	Use:   "get <paper-id>",
	Short: "Статья по идентификатору",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paper, err := client().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(paper)
	},
}

var (
	flagFile      string
	flagTitle     string
	flagAuthors   string
	flagPaperCat  string
	flagReview    string
	flagKeyPoints string
	flagPublic    bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Загрузить PDF со статьёй",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(flagFile)
		if err != nil {
			return fmt.Errorf("открытие файла: %w", err)
		}
		defer f.Close()

		paper, err := client().Upload(cmd.Context(), &paperclient.UploadRequest{
			Title:     flagTitle,
			Authors:   flagAuthors,
			Category:  flagPaperCat,
			Review:    flagReview,
			KeyPoints: flagKeyPoints,
			IsPublic:  flagPublic,
			FileName:  filepath.Base(flagFile),
			File:      f,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Статья загружена: %s\n", paper.ID)
		return printJSON(paper)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <paper-id>",
	Short: "Изменить метаданные статьи",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		upd := &paperclient.UpdateRequest{}
		if cmd.Flags().Changed("title") {
			upd.Title = &flagTitle
		}
		if cmd.Flags().Changed("authors") {
			upd.Authors = &flagAuthors
		}
		if cmd.Flags().Changed("category") {
			upd.Category = &flagPaperCat
		}
		if cmd.Flags().Changed("review") {
			upd.Review = &flagReview
		}
		if cmd.Flags().Changed("key-points") {
			upd.KeyPoints = splitKeyPoints(flagKeyPoints)
		}
		if cmd.Flags().Changed("public") {
			upd.IsPublic = &flagPublic
		}

		paper, err := client().Update(cmd.Context(), args[0], upd)
		if err != nil {
			return err
		}
		return printJSON(paper)
	},
}

var flagYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <paper-id>",
	Short: "Удалить статью вместе с файлом и комментариями",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !flagYes {
			return fmt.Errorf("удаление необратимо: подтвердите флагом --yes")
		}
		if err := client().Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Статья %s удалена\n", args[0])
		return nil
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments <paper-id>",
	Short: "Комментарии статьи",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comments, err := client().Comments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(comments)
		}
		for _, c := range comments {
			fmt.Printf("[%s] %s: %s\n",
				c.CreatedAt.Local().Format("2006-01-02 15:04"), c.UserName, c.Content)
		}
		fmt.Printf("Всего: %d\n", len(comments))
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <paper-id> <text>",
	Short: "Добавить комментарий к статье",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		comment, err := client().AddComment(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Комментарий добавлен: %s\n", comment.ID)
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Категории текущего пользователя",
	RunE: func(cmd *cobra.Command, args []string) error {
		categories, err := client().Categories(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(categories)
		}
		for _, c := range categories {
			fmt.Printf("%-20s %s\n", c.Name, c.Color)
		}
		return nil
	},
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Создать категорию",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := client().CreateCategory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Категория создана: %s (%s)\n", category.Name, category.Color)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [own|shared|comments <paper-id>]",
	Short: "Live-наблюдение за изменениями через SSE",
	Long: `Подписывается на SSE-поток и печатает полный снимок данных
при каждом изменении. Завершение — Ctrl+C.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()

		var subscribe func(context.Context) (*paperclient.Subscription, error)
		switch args[0] {
		case "own":
			subscribe = c.SubscribeOwnPapers
		case "shared":
			subscribe = c.SubscribeSharedPapers
		case "comments":
			if len(args) != 2 {
				return fmt.Errorf("укажите идентификатор статьи: watch comments <paper-id>")
			}
			paperID := args[1]
			subscribe = func(ctx context.Context) (*paperclient.Subscription, error) {
				return c.SubscribeComments(ctx, paperID)
			}
		default:
			return fmt.Errorf("неизвестный поток %q: допустимые own, shared, comments", args[0])
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		watcher := paperclient.NewWatcher(c, paperclient.WatchHandler{
			OnEvent: func(ev paperclient.Event) {
				fmt.Printf("--- %s %s ---\n", time.Now().Local().Format("15:04:05"), ev.Name)
				var pretty json.RawMessage = ev.Data
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(pretty)
			},
			OnError: func(err error) {
				fmt.Fprintf(os.Stderr, "ошибка потока: %v\n", err)
			},
		}, 3*time.Second, logger)

		watcher.Watch(ctx, subscribe)
		<-ctx.Done()
		watcher.Stop()
		return nil
	},
}

// splitKeyPoints разбирает тезисы, разделённые запятыми.
// Пустые элементы после обрезки пробелов отбрасываются.
func splitKeyPoints(raw string) []string {
	result := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server",
		envDefault("WPCTL_SERVER", "http://localhost:8080"), "адрес сервера Webpaper")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token",
		os.Getenv("WPCTL_TOKEN"), "JWT для авторизации")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "вывод в формате JSON")

	for _, cmd := range []*cobra.Command{listCmd, sharedCmd} {
		cmd.Flags().StringVar(&flagCategory, "category", paperclient.CategoryAll, "фильтр по категории")
		cmd.Flags().StringVar(&flagSearch, "search", "", "поиск по названию и авторам")
	}

	uploadCmd.Flags().StringVar(&flagFile, "file", "", "путь к PDF-файлу")
	uploadCmd.Flags().StringVar(&flagTitle, "title", "", "название статьи")
	uploadCmd.Flags().StringVar(&flagAuthors, "authors", "", "авторы")
	uploadCmd.Flags().StringVar(&flagPaperCat, "category", "", "категория")
	uploadCmd.Flags().StringVar(&flagReview, "review", "", "рецензия")
	uploadCmd.Flags().StringVar(&flagKeyPoints, "key-points", "", "ключевые тезисы через запятую")
	uploadCmd.Flags().BoolVar(&flagPublic, "public", false, "сделать статью публичной")
	_ = uploadCmd.MarkFlagRequired("file")
	_ = uploadCmd.MarkFlagRequired("title")
	_ = uploadCmd.MarkFlagRequired("authors")
	_ = uploadCmd.MarkFlagRequired("category")

	editCmd.Flags().StringVar(&flagTitle, "title", "", "название статьи")
	editCmd.Flags().StringVar(&flagAuthors, "authors", "", "авторы")
	editCmd.Flags().StringVar(&flagPaperCat, "category", "", "категория")
	editCmd.Flags().StringVar(&flagReview, "review", "", "рецензия")
	editCmd.Flags().StringVar(&flagKeyPoints, "key-points", "", "ключевые тезисы через запятую")
	editCmd.Flags().BoolVar(&flagPublic, "public", false, "публичность статьи")

	deleteCmd.Flags().BoolVar(&flagYes, "yes", false, "подтверждение удаления")

	categoriesCmd.AddCommand(categoriesAddCmd)
	rootCmd.AddCommand(meCmd, listCmd, sharedCmd, getCmd, uploadCmd, editCmd,
		deleteCmd, commentsCmd, commentCmd, categoriesCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// envDefault возвращает значение переменной окружения или значение по умолчанию.
func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
