package httpserver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blackmichael/snippet-feed/internal/domain"
)

// memStore is an in-memory TopicRepository and PostRepository.
type memStore struct {
	mu     sync.Mutex
	topics map[int64]domain.Topic
	posts  map[int64]domain.Post
	nextID int64
	now    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		topics: make(map[int64]domain.Topic),
		posts:  make(map[int64]domain.Post),
		nextID: 1,
		now:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.now = s.now.Add(time.Minute)
	return s.now
}

func (s *memStore) CreateTopic(_ context.Context, t *domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.topics {
		if existing.Name == t.Name {
			return domain.ErrConflict
		}
	}
	t.ID = s.nextID
	s.nextID++
	t.CreatedAt = s.tick()
	s.topics[t.ID] = *t
	return nil
}

func (s *memStore) ListTopics(context.Context) ([]domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Topic, 0, len(s.topics))
	for _, t := range s.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) GetTopic(_ context.Context, id int64) (*domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (s *memStore) DeleteTopic(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.topics, id)
	for pid, p := range s.posts {
		if p.TopicID == id {
			delete(s.posts, pid)
		}
	}
	return nil
}

func (s *memStore) CreatePosts(_ context.Context, topicID int64, contents []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range contents {
		id := s.nextID
		s.nextID++
		s.posts[id] = domain.Post{ID: id, TopicID: topicID, Content: c, Timestamp: s.tick()}
	}
	return len(contents), nil
}

func (s *memStore) withTopic(p domain.Post) domain.Post {
	if t, ok := s.topics[p.TopicID]; ok {
		p.Topic = &t
	}
	return p
}

func (s *memStore) GetPost(_ context.Context, id int64) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p = s.withTopic(p)
	return &p, nil
}

func (s *memStore) ListPosts(_ context.Context, f domain.PostFilter) ([]domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Post
	for _, p := range s.posts {
		if f.TopicID != nil && p.TopicID != *f.TopicID {
			continue
		}
		if f.Like != nil && p.LikeStatus != *f.Like {
			continue
		}
		if f.Dislike != nil && p.DislikeStatus != *f.Dislike {
			continue
		}
		if f.DeepDive != nil && p.DeepDive != *f.DeepDive {
			continue
		}
		out = append(out, s.withTopic(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	if f.Offset >= len(out) {
		return []domain.Post{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memStore) CountPosts(_ context.Context, topicID *int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.posts {
		if topicID == nil || p.TopicID == *topicID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) SetFeedback(_ context.Context, post *domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[post.ID]
	if !ok {
		return domain.ErrNotFound
	}
	p.LikeStatus, p.DislikeStatus, p.DeepDive = post.LikeStatus, post.DislikeStatus, post.DeepDive
	s.posts[post.ID] = p
	return nil
}

func (s *memStore) DeletePost(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *memStore) CountFeedback(context.Context) (domain.FeedbackCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := domain.FeedbackCounts{TotalPosts: len(s.posts), TotalTopics: len(s.topics)}
	for _, p := range s.posts {
		if p.LikeStatus {
			c.LikedPosts++
		}
		if p.DislikeStatus {
			c.DislikedPosts++
		}
	}
	return c, nil
}

// listGenerator answers every prompt with a fixed numbered list.
type listGenerator struct{}

func (listGenerator) Generate(_ context.Context, prompt string) (string, error) {
	items := []string{
		"1. The speed of light in a vacuum is exactly 299,792,458 metres per second.",
		"2. Honey never spoils because its low moisture content inhibits bacterial growth.",
	}
	return strings.Join(items, "\n"), nil
}
