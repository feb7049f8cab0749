package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNoTopics is returned when a generation run finds nothing to generate for.
var ErrNoTopics = errors.New("no topics found to generate posts for")

// GenerationResult reports the outcome of generating posts for one topic.
type GenerationResult struct {
	TopicID        int64  `json:"topic_id"`
	TopicName      string `json:"topic_name"`
	PostsGenerated int    `json:"posts_generated"`
	Error          string `json:"error,omitempty"`
}

// SchedulerStatus describes the periodic generation job.
type SchedulerStatus struct {
	Running       bool       `json:"running"`
	LastRunTime   *time.Time `json:"last_run_time"`
	NextRunTime   *time.Time `json:"next_run_time"`
	IntervalHours float64    `json:"interval_hours"`
	PostsPerTopic int        `json:"posts_per_topic"`
}

// GenerationService creates new posts for topics by prompting a Generator
// with the feedback collected on earlier posts.
type GenerationService struct {
	topics        TopicRepository
	posts         PostRepository
	generator     Generator
	notifier      Notifier
	postsPerTopic int
	logger        *slog.Logger

	// runMu serialises generation runs.
	runMu sync.Mutex

	mu       sync.Mutex
	running  bool
	interval time.Duration
	lastRun  time.Time
	nextRun  time.Time
}

// NewGenerationService creates a GenerationService. A nil notifier disables
// live notifications.
func NewGenerationService(topics TopicRepository, posts PostRepository, generator Generator, notifier Notifier, postsPerTopic int, logger *slog.Logger) *GenerationService {
	if postsPerTopic <= 0 {
		postsPerTopic = 10
	}
	return &GenerationService{
		topics:        topics,
		posts:         posts,
		generator:     generator,
		notifier:      notifier,
		postsPerTopic: postsPerTopic,
		logger:        logger,
	}
}

// GenerateForTopics runs generation for one topic, or for all topics when
// topicID is nil. A failure on one topic is recorded in its result and does
// not stop the others.
func (s *GenerationService) GenerateForTopics(ctx context.Context, topicID *int64) ([]GenerationResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	var topics []Topic
	if topicID != nil {
		topic, err := s.topics.GetTopic(ctx, *topicID)
		if err != nil {
			return nil, err
		}
		topics = []Topic{*topic}
	} else {
		all, err := s.topics.ListTopics(ctx)
		if err != nil {
			return nil, fmt.Errorf("list topics: %w", err)
		}
		topics = all
	}

	if len(topics) == 0 {
		return nil, ErrNoTopics
	}

	results := make([]GenerationResult, 0, len(topics))
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := GenerationResult{TopicID: topic.ID, TopicName: topic.Name}
		saved, err := s.generateForTopic(ctx, topic)
		if err != nil {
			s.logger.Error("post generation failed", "topic_id", topic.ID, "topic_name", topic.Name, "error", err)
			result.Error = err.Error()
		} else {
			result.PostsGenerated = saved
			s.logger.Info("generated posts", "topic_id", topic.ID, "topic_name", topic.Name, "posts_generated", saved)
		}
		results = append(results, result)

		if saved > 0 && s.notifier != nil {
			s.notifier.Publish(ctx, Event{
				Type:    EventPostsGenerated,
				TopicID: topic.ID,
				Count:   saved,
				At:      time.Now().UTC(),
			})
		}
	}

	return results, nil
}

func (s *GenerationService) generateForTopic(ctx context.Context, topic Topic) (int, error) {
	past, err := s.posts.ListPosts(ctx, PostFilter{TopicID: &topic.ID})
	if err != nil {
		return 0, fmt.Errorf("list past posts: %w", err)
	}

	prompt := BuildPrompt(topic, past, s.postsPerTopic)
	s.logger.Debug("generation prompt", "topic_id", topic.ID, "prompt", prompt)

	content, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("generate: %w", err)
	}

	snippets := ParseSnippets(content, s.postsPerTopic)
	if len(snippets) == 0 {
		s.logger.Warn("no valid posts generated", "topic_id", topic.ID, "topic_name", topic.Name)
		return 0, nil
	}

	saved, err := s.posts.CreatePosts(ctx, topic.ID, snippets)
	if err != nil {
		return 0, fmt.Errorf("create posts: %w", err)
	}
	return saved, nil
}

// Start runs generation for all topics immediately and then at the given
// interval. It blocks until ctx is cancelled.
func (s *GenerationService) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	s.running = true
	s.interval = interval
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.nextRun = time.Time{}
		s.mu.Unlock()
	}()

	s.logger.Info("post generation scheduler started", "interval", interval)
	s.runScheduled(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("post generation scheduler stopped")
			return
		case <-ticker.C:
			s.runScheduled(ctx, interval)
		}
	}
}

func (s *GenerationService) runScheduled(ctx context.Context, interval time.Duration) {
	started := time.Now().UTC()
	s.mu.Lock()
	s.lastRun = started
	s.nextRun = started.Add(interval)
	s.mu.Unlock()

	results, err := s.GenerateForTopics(ctx, nil)
	if errors.Is(err, ErrNoTopics) {
		s.logger.Info("no topics found for post generation")
		return
	}
	if err != nil {
		s.logger.Error("scheduled post generation failed", "error", err)
		return
	}

	total := 0
	for _, r := range results {
		total += r.PostsGenerated
	}
	s.logger.Info("scheduled post generation completed", "topics", len(results), "posts_generated", total, "duration", time.Since(started))
}

// Status reports the scheduler's state.
func (s *GenerationService) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		Running:       s.running,
		IntervalHours: s.interval.Hours(),
		PostsPerTopic: s.postsPerTopic,
	}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		status.LastRunTime = &last
	}
	if !s.nextRun.IsZero() {
		next := s.nextRun
		status.NextRunTime = &next
	}
	return status
}
