package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRepo is an in-memory TopicRepository and PostRepository.
type memRepo struct {
	mu     sync.Mutex
	topics []Topic
	posts  []Post
	nextID int64
	now    time.Time

	createErr error
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *memRepo) tick() time.Time {
	r.now = r.now.Add(time.Minute)
	return r.now
}

func (r *memRepo) CreateTopic(_ context.Context, t *Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.topics {
		if existing.Name == t.Name {
			return ErrConflict
		}
	}
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = r.tick()
	r.topics = append(r.topics, *t)
	return nil
}

func (r *memRepo) ListTopics(context.Context) ([]Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Topic(nil), r.topics...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) GetTopic(_ context.Context, id int64) (*Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.topics {
		if t.ID == id {
			t := t
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) DeleteTopic(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.topics {
		if t.ID == id {
			r.topics = append(r.topics[:i], r.topics[i+1:]...)
			kept := r.posts[:0]
			for _, p := range r.posts {
				if p.TopicID != id {
					kept = append(kept, p)
				}
			}
			r.posts = kept
			return nil
		}
	}
	return ErrNotFound
}

func (r *memRepo) CreatePosts(_ context.Context, topicID int64, contents []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return 0, r.createErr
	}
	for _, c := range contents {
		r.posts = append(r.posts, Post{ID: r.nextID, TopicID: topicID, Content: c, Timestamp: r.tick()})
		r.nextID++
	}
	return len(contents), nil
}

func (r *memRepo) GetPost(_ context.Context, id int64) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) ListPosts(_ context.Context, f PostFilter) ([]Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Post
	for _, p := range r.posts {
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
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) CountPosts(_ context.Context, topicID *int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.posts {
		if topicID == nil || p.TopicID == *topicID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) SetFeedback(_ context.Context, post *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.posts {
		if r.posts[i].ID == post.ID {
			r.posts[i].LikeStatus = post.LikeStatus
			r.posts[i].DislikeStatus = post.DislikeStatus
			r.posts[i].DeepDive = post.DeepDive
			return nil
		}
	}
	return ErrNotFound
}

func (r *memRepo) DeletePost(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.posts {
		if p.ID == id {
			r.posts = append(r.posts[:i], r.posts[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *memRepo) CountFeedback(context.Context) (FeedbackCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := FeedbackCounts{TotalPosts: len(r.posts), TotalTopics: len(r.topics)}
	for _, p := range r.posts {
		if p.LikeStatus {
			c.LikedPosts++
		}
		if p.DislikeStatus {
			c.DislikedPosts++
		}
	}
	return c, nil
}

type memCache struct {
	stats       *Stats
	gets, sets  int
	invalidated int
	getErr      error
}

func (c *memCache) GetStats(context.Context) (Stats, bool, error) {
	c.gets++
	if c.getErr != nil {
		return Stats{}, false, c.getErr
	}
	if c.stats == nil {
		return Stats{}, false, nil
	}
	return *c.stats, true, nil
}

func (c *memCache) SetStats(_ context.Context, s Stats) error {
	c.sets++
	c.stats = &s
	return nil
}

func (c *memCache) InvalidateStats(context.Context) error {
	c.invalidated++
	c.stats = nil
	return nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.reply(prompt)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(_ context.Context, e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

var errBoom = errors.New("boom")
