package domain

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// FeedService is the core domain service. It owns the business logic for
// serving the feed, applying feedback, and managing topics.
type FeedService struct {
	topics TopicRepository
	posts  PostRepository
	cache  StatsCache
	logger *slog.Logger
}

// NewFeedService creates a FeedService. A nil cache disables stats caching.
func NewFeedService(topics TopicRepository, posts PostRepository, cache StatsCache, logger *slog.Logger) *FeedService {
	if cache == nil {
		cache = noopCache{}
	}
	return &FeedService{
		topics: topics,
		posts:  posts,
		cache:  cache,
		logger: logger,
	}
}

// Feed returns one page of the mobile feed. Limit falls back to
// DefaultFeedLimit when zero and must not exceed MaxFeedLimit.
func (s *FeedService) Feed(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	if q.Limit == 0 {
		q.Limit = DefaultFeedLimit
	}
	if q.Limit < 1 || q.Limit > MaxFeedLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxFeedLimit)
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidInput)
	}

	total, err := s.posts.CountPosts(ctx, q.TopicID)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}

	posts, err := s.posts.ListPosts(ctx, PostFilter{
		TopicID: q.TopicID,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	page := &FeedPage{
		Posts:      posts,
		TotalCount: total,
		HasMore:    q.Offset+len(posts) < total,
	}
	if page.HasMore {
		next := q.Offset + len(posts)
		page.NextOffset = &next
	}

	s.logger.Debug("feed page served", "limit", q.Limit, "offset", q.Offset, "returned", len(posts), "total", total)
	return page, nil
}

// ListPosts returns posts for the administrative listing.
func (s *FeedService) ListPosts(ctx context.Context, filter PostFilter) ([]Post, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultPostsLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxPostsLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxPostsLimit)
	}
	if filter.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidInput)
	}
	return s.posts.ListPosts(ctx, filter)
}

// GetPost returns a single post with its topic.
func (s *FeedService) GetPost(ctx context.Context, id int64) (*Post, error) {
	return s.posts.GetPost(ctx, id)
}

// DeletePost removes a post.
func (s *FeedService) DeletePost(ctx context.Context, id int64) error {
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	s.logger.Info("deleted post", "post_id", id)
	return nil
}

// UpdateFeedback applies a partial feedback change to a post and returns the
// stored result.
func (s *FeedService) UpdateFeedback(ctx context.Context, id int64, update FeedbackUpdate) (*Post, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(post)

	if err := s.posts.SetFeedback(ctx, post); err != nil {
		return nil, fmt.Errorf("set feedback: %w", err)
	}
	s.invalidateStats(ctx)

	s.logger.Info("updated feedback",
		"post_id", id,
		"like_status", post.LikeStatus,
		"dislike_status", post.DislikeStatus,
		"deep_dive", post.DeepDive,
	)
	return post, nil
}

// Stats returns the dashboard aggregates, served from cache when possible.
func (s *FeedService) Stats(ctx context.Context) (Stats, error) {
	if cached, ok, err := s.cache.GetStats(ctx); err != nil {
		s.logger.Warn("stats cache read failed", "error", err)
	} else if ok {
		return cached, nil
	}

	counts, err := s.posts.CountFeedback(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count feedback: %w", err)
	}

	stats := Stats{
		TotalPosts:     counts.TotalPosts,
		TotalTopics:    counts.TotalTopics,
		LikedPosts:     counts.LikedPosts,
		DislikedPosts:  counts.DislikedPosts,
		EngagementRate: engagementRate(counts),
	}

	if err := s.cache.SetStats(ctx, stats); err != nil {
		s.logger.Warn("stats cache write failed", "error", err)
	}
	return stats, nil
}

// CreateTopic validates and stores a new topic.
func (s *FeedService) CreateTopic(ctx context.Context, name, description string) (*Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: topic_name is required", ErrInvalidInput)
	}

	topic := &Topic{Name: name, Description: strings.TrimSpace(description)}
	if err := s.topics.CreateTopic(ctx, topic); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)

	s.logger.Info("created topic", "topic_id", topic.ID, "topic_name", topic.Name)
	return topic, nil
}

// ListTopics returns all topics, newest first.
func (s *FeedService) ListTopics(ctx context.Context) ([]Topic, error) {
	return s.topics.ListTopics(ctx)
}

// GetTopic returns a single topic.
func (s *FeedService) GetTopic(ctx context.Context, id int64) (*Topic, error) {
	return s.topics.GetTopic(ctx, id)
}

// TopicWithPosts returns a topic and one page of its posts.
func (s *FeedService) TopicWithPosts(ctx context.Context, id int64, limit, offset int) (*Topic, []Post, error) {
	topic, err := s.topics.GetTopic(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	posts, err := s.ListPosts(ctx, PostFilter{TopicID: &id, Limit: limit, Offset: offset})
	if err != nil {
		return nil, nil, err
	}
	return topic, posts, nil
}

// DeleteTopic removes a topic and its posts.
func (s *FeedService) DeleteTopic(ctx context.Context, id int64) error {
	if err := s.topics.DeleteTopic(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	s.logger.Info("deleted topic", "topic_id", id)
	return nil
}

func (s *FeedService) invalidateStats(ctx context.Context) {
	if err := s.cache.InvalidateStats(ctx); err != nil {
		s.logger.Warn("stats cache invalidation failed", "error", err)
	}
}

// engagementRate is the share of posts with any feedback, as a percentage
// rounded to one decimal place.
func engagementRate(c FeedbackCounts) float64 {
	if c.TotalPosts == 0 {
		return 0
	}
	rate := float64(c.LikedPosts+c.DislikedPosts) / float64(c.TotalPosts) * 100
	return math.Round(rate*10) / 10
}

type noopCache struct{}

func (noopCache) GetStats(context.Context) (Stats, bool, error) { return Stats{}, false, nil }
func (noopCache) SetStats(context.Context, Stats) error         { return nil }
func (noopCache) InvalidateStats(context.Context) error         { return nil }
