package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"Bazaar/internal/model"
	"Bazaar/internal/pkg/kafka"
	"Bazaar/internal/pkg/moderation"
	"Bazaar/internal/pkg/worker"
	"Bazaar/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRepo(t *testing.T) repository.PostRepo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Post{}))
	return repository.NewPostRepo(db)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 130, B: 140, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func floatPtr(v float64) *float64 { return &v }

// syncSubmitter 在调用方 goroutine 中直接执行任务
type syncSubmitter struct{}

func (syncSubmitter) Submit(task worker.Task) error {
	task(context.Background())
	return nil
}

// queuedSubmitter 只收集任务，由测试决定何时执行
type queuedSubmitter struct {
	mu    sync.Mutex
	tasks []worker.Task
	err   error
}

func (q *queuedSubmitter) Submit(task worker.Task) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *queuedSubmitter) runAll() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, task := range tasks {
		task(context.Background())
	}
}

type fakePublisher struct {
	mu         sync.Mutex
	events     []kafka.ModerationEvent
	requests   []kafka.ModerationRequest
	requestErr error
}

func (p *fakePublisher) PublishDecision(_ context.Context, evt kafka.ModerationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) PublishRequest(_ context.Context, req kafka.ModerationRequest) error {
	if p.requestErr != nil {
		return p.requestErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return nil
}

type fakeImageStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	saves   int
	failAt  int
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{objects: map[string][]byte{}}
}

func (s *fakeImageStore) Save(_ context.Context, postID string, data []byte) (*model.PostImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failAt > 0 && s.saves == s.failAt {
		return nil, errors.New("bucket unavailable")
	}
	id := postID + "-" + string(rune('a'+s.saves))
	key := "posts/" + id + "/original.png"
	s.objects[key] = data
	return &model.PostImage{
		ImageID:    id,
		Filename:   id + ".png",
		Original:   key,
		URLs:       map[string]string{"original": "http://cdn/" + key},
		UploadedAt: time.Now().UTC(),
	}, nil
}

func (s *fakeImageStore) Delete(_ context.Context, images []model.PostImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, img := range images {
		delete(s.objects, img.Original)
		s.deleted = append(s.deleted, img.ImageID)
	}
}

func (s *fakeImageStore) LoadOriginals(_ context.Context, images []model.PostImage) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, 0, len(images))
	for _, img := range images {
		data, ok := s.objects[img.Original]
		if !ok {
			return nil, errors.New("object not found: " + img.Original)
		}
		out = append(out, data)
	}
	return out, nil
}

type fakeLocker struct {
	held    bool
	panics  bool
	unlocks int
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (string, bool, error) {
	if l.panics {
		panic("boom")
	}
	return "token", !l.held, nil
}

func (l *fakeLocker) Unlock(context.Context, string, string) error {
	l.unlocks++
	return nil
}

func newTestModeration(repo repository.PostRepo, pool TaskSubmitter, opts ModerationOptions) ModerationService {
	rules, err := moderation.NewRuleSet(moderation.DefaultRuleSpec())
	if err != nil {
		panic(err)
	}
	return NewModerationService(repo, moderation.NewTextEngine(rules), moderation.NewImageEngine(rules), pool, opts)
}

func insertPost(t *testing.T, repo repository.PostRepo, post *model.Post) *model.Post {
	t.Helper()
	if post.Status == "" {
		post.Status = model.PostStatusProcessing
	}
	if post.Images == nil {
		post.Images = model.ImageList{}
	}
	require.NoError(t, repo.InsertPost(context.Background(), post))
	return post
}

func loadPost(t *testing.T, repo repository.PostRepo, id string) *model.Post {
	t.Helper()
	post, err := repo.GetPostByID(context.Background(), id)
	require.NoError(t, err)
	return post
}
