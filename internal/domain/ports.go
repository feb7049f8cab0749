package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the requested topic or post does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// TopicRepository defines persistence operations for topics.
type TopicRepository interface {
	// CreateTopic inserts the topic and fills in ID and CreatedAt. Returns
	// ErrConflict if the name is already taken.
	CreateTopic(ctx context.Context, topic *Topic) error

	// ListTopics returns all topics, newest first.
	ListTopics(ctx context.Context) ([]Topic, error)

	// GetTopic returns ErrNotFound if the topic does not exist.
	GetTopic(ctx context.Context, id int64) (*Topic, error)

	// DeleteTopic removes the topic and all its posts.
	DeleteTopic(ctx context.Context, id int64) error
}

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	// CreatePosts inserts one post per content string under the given topic
	// and returns the number inserted.
	CreatePosts(ctx context.Context, topicID int64, contents []string) (int, error)

	// GetPost returns the post with its topic joined, or ErrNotFound.
	GetPost(ctx context.Context, id int64) (*Post, error)

	// ListPosts returns posts matching the filter ordered by timestamp
	// descending, with topics joined. A zero limit returns every match.
	ListPosts(ctx context.Context, filter PostFilter) ([]Post, error)

	// CountPosts counts posts, optionally restricted to one topic.
	CountPosts(ctx context.Context, topicID *int64) (int, error)

	// SetFeedback persists the three feedback flags of a post.
	SetFeedback(ctx context.Context, post *Post) error

	// DeletePost removes a post, or returns ErrNotFound.
	DeletePost(ctx context.Context, id int64) error

	// CountFeedback returns the aggregates used for Stats.
	CountFeedback(ctx context.Context) (FeedbackCounts, error)
}

// Generator produces raw snippet text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StatsCache stores the most recent Stats. A miss is reported with ok=false.
type StatsCache interface {
	GetStats(ctx context.Context) (stats Stats, ok bool, err error)
	SetStats(ctx context.Context, stats Stats) error
	InvalidateStats(ctx context.Context) error
}

// Notifier fans events out to live clients.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}
