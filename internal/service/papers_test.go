package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/webpaper/webpaper/internal/domain/model"
	"github.com/webpaper/webpaper/internal/repository"
	"github.com/webpaper/webpaper/internal/watch"
)

// minimalPDF собирает минимальный корректный одностраничный PDF.
// Смещения xref вычисляются по фактическим позициям объектов.
func minimalPDF(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>\nendobj\n",
	}
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		buf.WriteString(obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xref)

	return buf.Bytes()
}

// newTestPapersService собирает сервис статей поверх fake-зависимостей.
func newTestPapersService() (*PapersService, *fakePapersRepo, *fakeBlobStore, *watch.Hub) {
	repo := newFakePapersRepo()
	blobs := newFakeBlobStore()
	hub := watch.NewHub()
	svc := NewPapersService(repo, blobs, hub, testLogger())
	return svc, repo, blobs, hub
}

// validUpload возвращает корректный запрос загрузки статьи.
func validUpload(t *testing.T, userID string, public bool) *PaperUpload {
	t.Helper()
	return &PaperUpload{
		Title:     "Attention Is All You Need",
		Authors:   "Vaswani et al.",
		Category:  "ml",
		Review:    "Классика трансформеров",
		KeyPoints: []string{"self-attention", "positional encoding"},
		IsPublic:  public,
		FileName:  "attention.pdf",
		FileData:  minimalPDF(t),
		UserID:    userID,
	}
}

func TestParseKeyPoints(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"one", []string{"one"}},
		{"one,two,three", []string{"one", "two", "three"}},
		{" one , two ", []string{"one", "two"}},
		{"one,,two,", []string{"one", "two"}},
		{" , , ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseKeyPoints(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("ParseKeyPoints(%q) = %v, ожидается %v", tt.input, result, tt.expected)
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("ParseKeyPoints(%q)[%d] = %q, ожидается %q", tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}

func TestUpload_Success(t *testing.T) {
	svc, _, blobs, hub := newTestPapersService()
	ownCh, cancelOwn := hub.Subscribe(watch.TopicOwner("user-1"))
	defer cancelOwn()
	sharedCh, cancelShared := hub.Subscribe(watch.TopicShared)
	defer cancelShared()

	paper, err := svc.Upload(context.Background(), validUpload(t, "user-1", true))
	if err != nil {
		t.Fatalf("Upload() вернул ошибку: %v", err)
	}

	if paper.ID == uuid.Nil {
		t.Error("ID статьи не заполнен")
	}
	if paper.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q", paper.Title)
	}
	if !strings.HasPrefix(paper.FileKey, "papers/user-1/") {
		t.Errorf("FileKey = %q, ожидается префикс papers/user-1/", paper.FileKey)
	}
	if !strings.HasSuffix(paper.FileKey, "_attention.pdf") {
		t.Errorf("FileKey = %q, ожидается суффикс _attention.pdf", paper.FileKey)
	}
	if paper.FileURL == "" {
		t.Error("FileURL не заполнен")
	}
	if paper.FileSize != int64(len(minimalPDF(t))) {
		t.Errorf("FileSize = %d", paper.FileSize)
	}
	if blobs.stored() != 1 {
		t.Errorf("в хранилище %d объектов, ожидается 1", blobs.stored())
	}

	select {
	case <-ownCh:
	default:
		t.Error("уведомление темы владельца не отправлено")
	}
	select {
	case <-sharedCh:
	default:
		t.Error("уведомление темы публичных статей не отправлено")
	}
}

func TestUpload_PrivateDoesNotNotifyShared(t *testing.T) {
	svc, _, _, hub := newTestPapersService()
	sharedCh, cancel := hub.Subscribe(watch.TopicShared)
	defer cancel()

	if _, err := svc.Upload(context.Background(), validUpload(t, "user-1", false)); err != nil {
		t.Fatalf("Upload() вернул ошибку: %v", err)
	}

	select {
	case <-sharedCh:
		t.Error("приватная статья не должна уведомлять тему публичных")
	default:
	}
}

func TestUpload_ValidationErrors(t *testing.T) {
	svc, _, blobs, _ := newTestPapersService()

	tests := []struct {
		name   string
		mutate func(*PaperUpload)
	}{
		{"пустой title", func(u *PaperUpload) { u.Title = "  " }},
		{"пустой authors", func(u *PaperUpload) { u.Authors = "" }},
		{"пустая category", func(u *PaperUpload) { u.Category = "" }},
		{"пустой файл", func(u *PaperUpload) { u.FileData = nil }},
		{"не PDF", func(u *PaperUpload) { u.FileData = []byte("plain text, not a pdf") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUpload(t, "user-1", false)
			tt.mutate(u)

			_, err := svc.Upload(context.Background(), u)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ожидалась ErrValidation, получено: %v", err)
			}
		})
	}

	if blobs.stored() != 0 {
		t.Errorf("невалидные загрузки не должны попадать в хранилище, там %d объектов", blobs.stored())
	}
}

func TestUpload_TrimsMetadata(t *testing.T) {
	svc, _, _, _ := newTestPapersService()

	u := validUpload(t, "user-1", false)
	u.Title = "  Title  "
	u.Authors = " Authors "
	u.Category = " ml "

	paper, err := svc.Upload(context.Background(), u)
	if err != nil {
		t.Fatalf("Upload() вернул ошибку: %v", err)
	}
	if paper.Title != "Title" || paper.Authors != "Authors" || paper.Category != "ml" {
		t.Errorf("метаданные не обрезаны: %q / %q / %q", paper.Title, paper.Authors, paper.Category)
	}
}

func TestUpload_BlobUnavailable(t *testing.T) {
	svc, repo, blobs, _ := newTestPapersService()
	blobs.uploadErr = errors.New("minio down")

	_, err := svc.Upload(context.Background(), validUpload(t, "user-1", false))
	if !errors.Is(err, ErrBlobUnavailable) {
		t.Errorf("ожидалась ErrBlobUnavailable, получено: %v", err)
	}
	if count, _ := repo.CountByOwner(context.Background(), "user-1"); count != 0 {
		t.Errorf("метаданные сохранены несмотря на сбой хранилища: %d", count)
	}
}

func TestUpload_CompensatesBlobOnDBFailure(t *testing.T) {
	svc, repo, blobs, _ := newTestPapersService()
	repo.createErr = errors.New("connection refused")

	_, err := svc.Upload(context.Background(), validUpload(t, "user-1", false))
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}

	// Файл загружен до сбоя БД и должен быть удалён компенсацией.
	if len(blobs.deleted) != 1 {
		t.Fatalf("удалено %d объектов, ожидается 1", len(blobs.deleted))
	}
	if !strings.HasPrefix(blobs.deleted[0], "papers/user-1/") {
		t.Errorf("удалён неожиданный ключ %q", blobs.deleted[0])
	}
	if blobs.stored() != 0 {
		t.Errorf("после компенсации в хранилище %d объектов, ожидается 0", blobs.stored())
	}
}

func TestListOwn_NewestFirst(t *testing.T) {
	svc, _, _, _ := newTestPapersService()
	ctx := context.Background()

	first := validUpload(t, "user-1", false)
	first.Title = "Первая"
	second := validUpload(t, "user-1", false)
	second.Title = "Вторая"
	if _, err := svc.Upload(ctx, first); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Upload(ctx, second); err != nil {
		t.Fatal(err)
	}
	// Статья другого пользователя не попадает в список.
	if _, err := svc.Upload(ctx, validUpload(t, "user-2", false)); err != nil {
		t.Fatal(err)
	}

	papers, err := svc.ListOwn(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListOwn() вернул ошибку: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("получено %d статей, ожидается 2", len(papers))
	}
	if papers[0].Title != "Вторая" || papers[1].Title != "Первая" {
		t.Errorf("порядок не «новые первыми»: %q, %q", papers[0].Title, papers[1].Title)
	}
}

func TestListShared_OnlyPublic(t *testing.T) {
	svc, _, _, _ := newTestPapersService()
	ctx := context.Background()

	if _, err := svc.Upload(ctx, validUpload(t, "user-1", true)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Upload(ctx, validUpload(t, "user-2", false)); err != nil {
		t.Fatal(err)
	}

	papers, err := svc.ListShared(ctx)
	if err != nil {
		t.Fatalf("ListShared() вернул ошибку: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("получено %d статей, ожидается 1", len(papers))
	}
	if papers[0].UserID != "user-1" {
		t.Errorf("UserID = %q, ожидается user-1", papers[0].UserID)
	}
}

func TestGet_PublicVisibleToAnyone(t *testing.T) {
	svc, _, _, _ := newTestPapersService()
	ctx := context.Background()

	created, err := svc.Upload(ctx, validUpload(t, "user-1", true))
	if err != nil {
		t.Fatal(err)
	}

	// Анонимный запрос — requesterID пустой.
	paper, err := svc.Get(ctx, created.ID, "")
	if err != nil {
		t.Fatalf("Get() вернул ошибку: %v", err)
	}
	if paper.ID != created.ID {
		t.Errorf("получена не та статья: %s", paper.ID)
	}
}

func TestGet_PrivateHiddenFromOthers(t *testing.T) {
	svc, _, _, _ := newTestPapersService()
	ctx := context.Background()

	created, err := svc.Upload(ctx, validUpload(t, "user-1", false))
	if err != nil {
		t.Fatal(err)
	}

	// Владелец видит свою приватную статью.
	if _, err := svc.Get(ctx, created.ID, "user-1"); err != nil {
		t.Errorf("владелец не видит свою статью: %v", err)
	}

	// Чужая приватная статья неотличима от несуществующей.
	if _, err := svc.Get(ctx, created.ID, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound для чужой приватной статьи, получено: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound для анонимного запроса, получено: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _, _ := newTestPapersService()

	_, err := svc.Get(context.Background(), uuid.New(), "user-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено: %v", err)
	}
}

func TestUpdate_OwnerOnly(t *testing.T) {
	svc, _, _, _ := newTestPapersService()
	ctx := context.Background()

	created, err := svc.Upload(ctx, validUpload(t, "user-1", false))
	if err != nil {
		t.Fatal(err)
	}

	title := "Новое название"
	_, err = svc.Update(ctx, created.ID, "user-2", &model.PaperUpdate{Title: &title})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("ожидалась ErrForbidden, получено: %v", err)
	}
}

func TestUpdate_AppliesFields(t *testing.T) {
	svc, _, _, _ := newTestPapersService()
	ctx := context.Background()

	created, err := svc.Upload(ctx, validUpload(t, "user-1", false))
	if err != nil {
		t.Fatal(err)
	}

	title := "Новое название"
	public := true
	paper, err := svc.Update(ctx, created.ID, "user-1", &model.PaperUpdate{
		Title:    &title,
		IsPublic: &public,
	})
	if err != nil {
		t.Fatalf("Update() вернул ошибку: %v", err)
	}
	if paper.Title != "Новое название" {
		t.Errorf("Title = %q", paper.Title)
	}
	if !paper.IsPublic {
		t.Error("IsPublic не изменился")
	}
	// Неуказанные поля сохраняются.
	if paper.Authors != created.Authors {
		t.Errorf("Authors изменился: %q", paper.Authors)
	}
}

func TestUpdate_RejectsEmptyRequiredFields(t *testing.T) {
	svc, _, _, _ := newTestPapersService()
	ctx := context.Background()

	created, err := svc.Upload(ctx, validUpload(t, "user-1", false))
	if err != nil {
		t.Fatal(err)
	}

	empty := "  "
	for name, upd := range map[string]*model.PaperUpdate{
		"title":    {Title: &empty},
		"authors":  {Authors: &empty},
		"category": {Category: &empty},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Update(ctx, created.ID, "user-1", upd); !errors.Is(err, ErrValidation) {
				t.Errorf("ожидалась ErrValidation, получено: %v", err)
			}
		})
	}
}

func TestUpdate_VisibilityChangeNotifiesShared(t *testing.T) {
	svc, _, _, hub := newTestPapersService()
	ctx := context.Background()

	created, err := svc.Upload(ctx, validUpload(t, "user-1", true))
	if err != nil {
		t.Fatal(err)
	}

	sharedCh, cancel := hub.Subscribe(watch.TopicShared)
	defer cancel()

	// Публичная → приватная: список публичных меняется.
	private := false
	if _, err := svc.Update(ctx, created.ID, "user-1", &model.PaperUpdate{IsPublic: &private}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-sharedCh:
	default:
		t.Error("снятие публикации не уведомило тему публичных статей")
	}

	// Правка приватной статьи тему публичных не трогает.
	title := "Приватная правка"
	if _, err := svc.Update(ctx, created.ID, "user-1", &model.PaperUpdate{Title: &title}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-sharedCh:
		t.Error("правка приватной статьи уведомила тему публичных")
	default:
	}
}

func TestDelete_OwnerOnly(t *testing.T) {
	svc, _, _, _ := newTestPapersService()
	ctx := context.Background()

	created, err := svc.Upload(ctx, validUpload(t, "user-1", false))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, created.ID, "user-2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("ожидалась ErrForbidden, получено: %v", err)
	}
}

func TestDelete_RemovesBlobAndMetadata(t *testing.T) {
	svc, repo, blobs, hub := newTestPapersService()
	ctx := context.Background()

	created, err := svc.Upload(ctx, validUpload(t, "user-1", true))
	if err != nil {
		t.Fatal(err)
	}

	commentsCh, cancel := hub.Subscribe(watch.TopicComments(created.ID))
	defer cancel()

	if err := svc.Delete(ctx, created.ID, "user-1"); err != nil {
		t.Fatalf("Delete() вернул ошибку: %v", err)
	}

	if blobs.stored() != 0 {
		t.Errorf("файл не удалён из хранилища")
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("метаданные не удалены: %v", err)
	}
	select {
	case <-commentsCh:
	default:
		t.Error("подписчики комментариев не уведомлены об удалении статьи")
	}
}

func TestDelete_BlobFailureDoesNotBlock(t *testing.T) {
	svc, repo, blobs, _ := newTestPapersService()
	ctx := context.Background()

	created, err := svc.Upload(ctx, validUpload(t, "user-1", false))
	if err != nil {
		t.Fatal(err)
	}
	blobs.deleteErr = errors.New("minio down")

	// Сбой хранилища не мешает удалению метаданных.
	if err := svc.Delete(ctx, created.ID, "user-1"); err != nil {
		t.Fatalf("Delete() вернул ошибку: %v", err)
	}
	if count, _ := repo.CountByOwner(ctx, "user-1"); count != 0 {
		t.Errorf("метаданные не удалены: %d статей", count)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _, _, _ := newTestPapersService()

	if err := svc.Delete(context.Background(), uuid.New(), "user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено: %v", err)
	}
}
