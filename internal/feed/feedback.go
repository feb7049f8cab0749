package feed

import (
	"context"
	"log/slog"

	"github.com/blackmichael/snippet-feed/internal/client"
)

// FeedbackAPI sends feedback mutations. *client.Client satisfies it.
type FeedbackAPI interface {
	UpdateFeedback(ctx context.Context, postID int64, update client.FeedbackUpdate) error
}

type reaction int

const (
	reactionLike reaction = iota
	reactionDislike
)

func (r reaction) String() string {
	if r == reactionLike {
		return "like"
	}
	return "dislike"
}

func (r reaction) get(p *client.Post) bool {
	if r == reactionLike {
		return p.LikeStatus
	}
	return p.DislikeStatus
}

func (r reaction) set(p *client.Post, v bool) {
	if r == reactionLike {
		p.LikeStatus = v
	} else {
		p.DislikeStatus = v
	}
}

// Feedback applies like and dislike toggles to the posts held by a
// Controller. Local state changes before the request is sent; on failure
// only the toggled flag is restored.
type Feedback struct {
	feed   *Controller
	api    FeedbackAPI
	logger *slog.Logger
}

// NewFeedback creates a feedback controller that mutates posts held by feed.
func NewFeedback(feed *Controller, api FeedbackAPI, logger *slog.Logger) *Feedback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feedback{feed: feed, api: api, logger: logger}
}

// SetLike toggles the like flag of a held post and clears its dislike flag.
// Unknown ids are ignored.
func (f *Feedback) SetLike(ctx context.Context, postID int64) {
	f.toggle(ctx, postID, reactionLike)
}

// SetDislike toggles the dislike flag of a held post and clears its like
// flag. Unknown ids are ignored.
func (f *Feedback) SetDislike(ctx context.Context, postID int64) {
	f.toggle(ctx, postID, reactionDislike)
}

func (f *Feedback) toggle(ctx context.Context, postID int64, r reaction) {
	var prev, next bool
	found := f.feed.updatePost(postID, func(p *client.Post) {
		prev = r.get(p)
		next = !prev
		p.LikeStatus = false
		p.DislikeStatus = false
		r.set(p, next)
	})
	if !found {
		f.logger.Debug("feedback for unknown post ignored", "post_id", postID, "reaction", r)
		return
	}

	like := next && r == reactionLike
	dislike := next && r == reactionDislike
	err := f.api.UpdateFeedback(ctx, postID, client.FeedbackUpdate{
		LikeStatus:    &like,
		DislikeStatus: &dislike,
	})
	if err == nil {
		return
	}

	// The opposite flag keeps the value set above.
	f.feed.updatePost(postID, func(p *client.Post) {
		r.set(p, prev)
	})
	f.logger.Warn("feedback update failed, reverted",
		"post_id", postID,
		"reaction", r,
		"restored", prev,
		"error", err,
	)
}
