package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/blackmichael/snippet-feed/internal/domain"
)

type topicView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"topic_name"`
	Description string    `json:"topic_description"`
	CreatedAt   time.Time `json:"created_at"`
}

type topicWithPostsView struct {
	topicView
	Posts []postView `json:"posts"`
}

type postView struct {
	ID            int64      `json:"post_id"`
	TopicID       int64      `json:"topic_id"`
	Content       string     `json:"post_content"`
	Timestamp     time.Time  `json:"timestamp"`
	LikeStatus    bool       `json:"like_status"`
	DislikeStatus bool       `json:"dislike_status"`
	DeepDive      bool       `json:"deep_dive"`
	Topic         *topicView `json:"topic,omitempty"`
}

// mobileTopicView and mobilePostView are the trimmed shapes served to the
// feed client.
type mobileTopicView struct {
	ID   int64  `json:"id"`
	Name string `json:"topic_name"`
}

type mobilePostView struct {
	ID            int64           `json:"post_id"`
	Content       string          `json:"post_content"`
	Timestamp     time.Time       `json:"timestamp"`
	LikeStatus    bool            `json:"like_status"`
	DislikeStatus bool            `json:"dislike_status"`
	Topic         mobileTopicView `json:"topic"`
}

type mobileFeedView struct {
	Posts      []mobilePostView `json:"posts"`
	TotalCount int              `json:"total_count"`
	HasMore    bool             `json:"has_more"`
	NextOffset *int             `json:"next_offset"`
}

type feedbackRequest struct {
	LikeStatus    *bool `json:"like_status"`
	DislikeStatus *bool `json:"dislike_status"`
	DeepDive      *bool `json:"deep_dive"`
}

func (f feedbackRequest) toUpdate() domain.FeedbackUpdate {
	return domain.FeedbackUpdate{
		Like:     f.LikeStatus,
		Dislike:  f.DislikeStatus,
		DeepDive: f.DeepDive,
	}
}

type createTopicRequest struct {
	Name        string `json:"topic_name"`
	Description string `json:"topic_description"`
}

type generationView struct {
	Message             string                    `json:"message"`
	TotalPostsGenerated int                       `json:"total_posts_generated"`
	Results             []domain.GenerationResult `json:"results"`
}

func toTopicView(t domain.Topic) topicView {
	return topicView{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}
}

func toPostView(p domain.Post) postView {
	v := postView{
		ID:            p.ID,
		TopicID:       p.TopicID,
		Content:       p.Content,
		Timestamp:     p.Timestamp,
		LikeStatus:    p.LikeStatus,
		DislikeStatus: p.DislikeStatus,
		DeepDive:      p.DeepDive,
	}
	if p.Topic != nil {
		tv := toTopicView(*p.Topic)
		v.Topic = &tv
	}
	return v
}

func toPostViews(posts []domain.Post) []postView {
	views := make([]postView, len(posts))
	for i, p := range posts {
		views[i] = toPostView(p)
	}
	return views
}

func toMobilePostView(p domain.Post) mobilePostView {
	v := mobilePostView{
		ID:            p.ID,
		Content:       p.Content,
		Timestamp:     p.Timestamp,
		LikeStatus:    p.LikeStatus,
		DislikeStatus: p.DislikeStatus,
		Topic:         mobileTopicView{ID: p.TopicID},
	}
	if p.Topic != nil {
		v.Topic.Name = p.Topic.Name
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}
