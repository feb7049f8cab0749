package client

import "time"

// Topic is the topic reference embedded in each post.
type Topic struct {
	ID   int64  `json:"id"`
	Name string `json:"topic_name"`
}

// Post is a feed entry as served by the mobile API.
type Post struct {
	ID            int64     `json:"post_id"`
	Content       string    `json:"post_content"`
	Timestamp     time.Time `json:"timestamp"`
	LikeStatus    bool      `json:"like_status"`
	DislikeStatus bool      `json:"dislike_status"`
	Topic         Topic     `json:"topic"`
}

// FeedPage is one response from the feed endpoint.
type FeedPage struct {
	// Posts is nil when the response carried no posts array.
	Posts []Post `json:"posts"`

	// HasMore is nil when the server did not send the flag.
	HasMore *bool `json:"has_more,omitempty"`

	TotalCount int  `json:"total_count,omitempty"`
	NextOffset *int `json:"next_offset,omitempty"`
}

// FeedbackUpdate is the body of a feedback mutation.
type FeedbackUpdate struct {
	LikeStatus    *bool `json:"like_status,omitempty"`
	DislikeStatus *bool `json:"dislike_status,omitempty"`
}

// Stats mirrors the mobile stats endpoint.
type Stats struct {
	TotalPosts     int     `json:"total_posts"`
	TotalTopics    int     `json:"total_topics"`
	LikedPosts     int     `json:"liked_posts"`
	DislikedPosts  int     `json:"disliked_posts"`
	EngagementRate float64 `json:"engagement_rate"`
}
