package domain

import "time"

// Topic groups posts by subject. The description steers content generation.
type Topic struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Post is a single educational snippet.
type Post struct {
	// ID is the server-assigned post identity.
	ID int64

	// TopicID references the owning topic.
	TopicID int64

	// Content is the snippet text.
	Content string

	// Timestamp is when the post was created.
	Timestamp time.Time

	// LikeStatus and DislikeStatus are mutually exclusive.
	LikeStatus    bool
	DislikeStatus bool

	// DeepDive marks posts the reader wants explored in more depth.
	DeepDive bool

	// Topic is populated by queries that join the owning topic.
	Topic *Topic
}

// FeedbackUpdate carries a partial feedback change. Nil fields are left
// unchanged.
type FeedbackUpdate struct {
	Like     *bool
	Dislike  *bool
	DeepDive *bool
}

// Empty reports whether the update changes nothing.
func (u FeedbackUpdate) Empty() bool {
	return u.Like == nil && u.Dislike == nil && u.DeepDive == nil
}

// Apply folds the update into p. Setting like clears dislike and vice versa;
// deep dive is independent of both.
func (u FeedbackUpdate) Apply(p *Post) {
	if u.Like != nil {
		p.LikeStatus = *u.Like
		if *u.Like {
			p.DislikeStatus = false
		}
	}
	if u.Dislike != nil {
		p.DislikeStatus = *u.Dislike
		if *u.Dislike {
			p.LikeStatus = false
		}
	}
	if u.DeepDive != nil {
		p.DeepDive = *u.DeepDive
	}
}
