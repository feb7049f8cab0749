package domain

import "time"

const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 50

	DefaultPostsLimit = 50
	MaxPostsLimit     = 100
)

// FeedQuery selects a page of the mobile feed.
type FeedQuery struct {
	Limit  int
	Offset int

	// TopicID restricts the feed to one topic when non-nil.
	TopicID *int64
}

// FeedPage is one page of the mobile feed, newest first.
type FeedPage struct {
	Posts      []Post
	TotalCount int
	HasMore    bool

	// NextOffset is set only when HasMore is true.
	NextOffset *int
}

// PostFilter selects posts for the administrative listing.
type PostFilter struct {
	TopicID  *int64
	Like     *bool
	Dislike  *bool
	DeepDive *bool
	Limit    int
	Offset   int
}

// FeedbackCounts are the raw aggregates behind Stats.
type FeedbackCounts struct {
	TotalPosts    int
	TotalTopics   int
	LikedPosts    int
	DislikedPosts int
}

// Stats is the dashboard summary served to mobile clients.
type Stats struct {
	TotalPosts     int     `json:"total_posts"`
	TotalTopics    int     `json:"total_topics"`
	LikedPosts     int     `json:"liked_posts"`
	DislikedPosts  int     `json:"disliked_posts"`
	EngagementRate float64 `json:"engagement_rate"`
}

// Event is a notification pushed to live clients.
type Event struct {
	Type    string    `json:"type"`
	TopicID int64     `json:"topic_id,omitempty"`
	Count   int       `json:"count,omitempty"`
	At      time.Time `json:"at"`
}

// EventPostsGenerated is published after a generation run saved new posts.
const EventPostsGenerated = "posts_generated"
