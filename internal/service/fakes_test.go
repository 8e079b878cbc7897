package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webpaper/webpaper/internal/domain/model"
	"github.com/webpaper/webpaper/internal/repository"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePapersRepo — in-memory реализация PapersRepository для тестов.
type fakePapersRepo struct {
	mu        sync.Mutex
	papers    []*model.Paper
	clock     time.Time
	createErr error
	updateErr error
	deleteErr error
}

func newFakePapersRepo() *fakePapersRepo {
	return &fakePapersRepo{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// tick возвращает монотонно растущую временную метку.
func (f *fakePapersRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakePapersRepo) Create(_ context.Context, c *model.PaperCreate) (*model.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}

	now := f.tick()
	keyPoints := c.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	p := &model.Paper{
		ID:        uuid.New(),
		Title:     c.Title,
		Authors:   c.Authors,
		Category:  c.Category,
		Review:    c.Review,
		KeyPoints: keyPoints,
		IsPublic:  c.IsPublic,
		FileURL:   c.FileURL,
		FileKey:   c.FileKey,
		FileName:  c.FileName,
		FileSize:  c.FileSize,
		UserID:    c.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.papers = append(f.papers, p)
	out := *p
	return &out, nil
}

func (f *fakePapersRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.papers {
		if p.ID == id {
			out := *p
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePapersRepo) ListByOwner(_ context.Context, userID string) ([]*model.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*model.Paper{}
	// Новые первыми, как в SQL ORDER BY created_at DESC.
	for i := len(f.papers) - 1; i >= 0; i-- {
		if f.papers[i].UserID == userID {
			out := *f.papers[i]
			result = append(result, &out)
		}
	}
	return result, nil
}

func (f *fakePapersRepo) ListPublic(_ context.Context) ([]*model.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*model.Paper{}
	for i := len(f.papers) - 1; i >= 0; i-- {
		if f.papers[i].IsPublic {
			out := *f.papers[i]
			result = append(result, &out)
		}
	}
	return result, nil
}

func (f *fakePapersRepo) Update(_ context.Context, id uuid.UUID, upd *model.PaperUpdate) (*model.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for _, p := range f.papers {
		if p.ID != id {
			continue
		}
		if upd.Title != nil {
			p.Title = *upd.Title
		}
		if upd.Authors != nil {
			p.Authors = *upd.Authors
		}
		if upd.Category != nil {
			p.Category = *upd.Category
		}
		if upd.Review != nil {
			p.Review = *upd.Review
		}
		if upd.KeyPoints != nil {
			p.KeyPoints = upd.KeyPoints
		}
		if upd.IsPublic != nil {
			p.IsPublic = *upd.IsPublic
		}
		p.UpdatedAt = f.tick()
		out := *p
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakePapersRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, p := range f.papers {
		if p.ID == id {
			f.papers = append(f.papers[:i], f.papers[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakePapersRepo) CountByOwner(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.papers {
		if p.UserID == userID {
			count++
		}
	}
	return count, nil
}

// fakeCommentsRepo — in-memory реализация CommentsRepository.
type fakeCommentsRepo struct {
	mu        sync.Mutex
	comments  []*model.Comment
	clock     time.Time
	createErr error
}

func newFakeCommentsRepo() *fakeCommentsRepo {
	return &fakeCommentsRepo{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeCommentsRepo) Create(_ context.Context, c *model.CommentCreate) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}

	f.clock = f.clock.Add(time.Second)
	out := &model.Comment{
		ID:        uuid.New(),
		PaperID:   c.PaperID,
		UserID:    c.UserID,
		UserName:  c.UserName,
		UserPhoto: c.UserPhoto,
		Content:   c.Content,
		CreatedAt: f.clock,
	}
	f.comments = append(f.comments, out)
	cp := *out
	return &cp, nil
}

func (f *fakeCommentsRepo) ListByPaper(_ context.Context, paperID uuid.UUID) ([]*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*model.Comment{}
	for _, c := range f.comments {
		if c.PaperID == paperID {
			out := *c
			result = append(result, &out)
		}
	}
	return result, nil
}

func (f *fakeCommentsRepo) CountByPaper(_ context.Context, paperID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.comments {
		if c.PaperID == paperID {
			count++
		}
	}
	return count, nil
}

// fakeCategoriesRepo — in-memory реализация CategoriesRepository.
type fakeCategoriesRepo struct {
	mu         sync.Mutex
	categories []*model.Category
	clock      time.Time
	listErr    error
}

func newFakeCategoriesRepo() *fakeCategoriesRepo {
	return &fakeCategoriesRepo{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeCategoriesRepo) Create(_ context.Context, c *model.CategoryCreate) (*model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return nil, repository.ErrConflict
		}
	}

	f.clock = f.clock.Add(time.Second)
	out := &model.Category{
		ID:        uuid.New(),
		UserID:    c.UserID,
		Name:      c.Name,
		Color:     c.Color,
		CreatedAt: f.clock,
	}
	f.categories = append(f.categories, out)
	cp := *out
	return &cp, nil
}

func (f *fakeCategoriesRepo) ListByOwner(_ context.Context, userID string) ([]*model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	result := []*model.Category{}
	for _, c := range f.categories {
		if c.UserID == userID {
			out := *c
			result = append(result, &out)
		}
	}
	return result, nil
}

func (f *fakeCategoriesRepo) GetByName(_ context.Context, userID, name string) (*model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.UserID == userID && c.Name == name {
			out := *c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// fakeCategoriesTx выполняет fn напрямую над fake-репозиторием, без транзакции.
type fakeCategoriesTx struct {
	repo  *fakeCategoriesRepo
	calls int
}

func (t *fakeCategoriesTx) InTx(_ context.Context, fn func(repo repository.CategoriesRepository) error) error {
	t.calls++
	return fn(t.repo)
}

// fakeBlobStore — in-memory реализация BlobStore.
type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	uploadErr error
	deleteErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.objects[key] = data
	return f.PublicURL(key), nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobStore) PublicURL(key string) string {
	return "http://files.test/papers/" + key
}

// stored возвращает число объектов в хранилище.
func (f *fakeBlobStore) stored() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}
