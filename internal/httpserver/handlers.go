package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/blackmichael/snippet-feed/internal/domain"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req createTopicRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	topic, err := s.feed.CreateTopic(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeServiceError(w, r, err, "create topic")
		return
	}
	writeJSON(w, http.StatusCreated, toTopicView(*topic))
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.feed.ListTopics(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "list topics")
		return
	}

	views := make([]topicView, len(topics))
	for i, t := range topics {
		views[i] = toTopicView(t)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	topic, err := s.feed.GetTopic(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "get topic")
		return
	}
	writeJSON(w, http.StatusOK, toTopicView(*topic))
}

func (s *Server) handleTopicPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r, domain.DefaultPostsLimit)
	if !ok {
		return
	}

	topic, posts, err := s.feed.TopicWithPosts(r.Context(), id, limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err, "get topic posts")
		return
	}
	writeJSON(w, http.StatusOK, topicWithPostsView{
		topicView: toTopicView(*topic),
		Posts:     toPostViews(posts),
	})
}

func (s *Server) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.feed.DeleteTopic(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "delete topic")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r, domain.DefaultPostsLimit)
	if !ok {
		return
	}

	filter := domain.PostFilter{Limit: limit, Offset: offset}
	var err error
	if filter.TopicID, err = queryInt64(r, "topic_id"); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	for name, dst := range map[string]**bool{
		"like_status":    &filter.Like,
		"dislike_status": &filter.Dislike,
		"deep_dive":      &filter.DeepDive,
	} {
		if *dst, err = queryBool(r, name); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
	}

	posts, err := s.feed.ListPosts(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err, "list posts")
		return
	}
	writeJSON(w, http.StatusOK, toPostViews(posts))
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	post, err := s.feed.GetPost(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "get post")
		return
	}
	writeJSON(w, http.StatusOK, toPostView(*post))
}

func (s *Server) handleUpdateFeedback(w http.ResponseWriter, r *http.Request) {
	post, ok := s.updateFeedback(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPostView(*post))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.feed.DeletePost(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "delete post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGeneratePosts(w http.ResponseWriter, r *http.Request) {
	topicID, err := queryInt64(r, "topic_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	s.generate(w, r, topicID)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request, topicID *int64) {
	results, err := s.generation.GenerateForTopics(r.Context(), topicID)
	if err != nil {
		s.writeServiceError(w, r, err, "generate posts")
		return
	}

	total := 0
	for _, res := range results {
		total += res.PostsGenerated
	}
	writeJSON(w, http.StatusOK, generationView{
		Message:             fmt.Sprintf("Post generation completed. Generated %d posts total.", total),
		TotalPostsGenerated: total,
		Results:             results,
	})
}

func (s *Server) handleMobileFeed(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r, domain.DefaultFeedLimit)
	if !ok {
		return
	}
	topicID, err := queryInt64(r, "topic_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	page, err := s.feed.Feed(r.Context(), domain.FeedQuery{Limit: limit, Offset: offset, TopicID: topicID})
	if err != nil {
		s.writeServiceError(w, r, err, "get feed")
		return
	}

	posts := make([]mobilePostView, len(page.Posts))
	for i, p := range page.Posts {
		posts[i] = toMobilePostView(p)
	}
	writeJSON(w, http.StatusOK, mobileFeedView{
		Posts:      posts,
		TotalCount: page.TotalCount,
		HasMore:    page.HasMore,
		NextOffset: page.NextOffset,
	})
}

func (s *Server) handleMobileFeedback(w http.ResponseWriter, r *http.Request) {
	post, ok := s.updateFeedback(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"post_id":        post.ID,
		"like_status":    post.LikeStatus,
		"dislike_status": post.DislikeStatus,
		"deep_dive":      post.DeepDive,
		"message":        "Feedback updated successfully",
	})
}

func (s *Server) handleMobileStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.feed.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// updateFeedback handles the shared part of both feedback routes. It writes
// the error response itself and reports whether the caller should continue.
func (s *Server) updateFeedback(w http.ResponseWriter, r *http.Request) (*domain.Post, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return nil, false
	}

	post, err := s.feed.UpdateFeedback(r.Context(), id, req.toUpdate())
	if err != nil {
		s.observeFeedback("error")
		s.writeServiceError(w, r, err, "update feedback")
		return nil, false
	}
	s.observeFeedback("ok")
	return post, true
}

func (s *Server) observeFeedback(result string) {
	if s.metrics != nil {
		s.metrics.FeedbackUpdates.WithLabelValues(result).Inc()
	}
}

// writeServiceError maps domain errors to HTTP responses. Unexpected errors
// are logged and reported without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNoTopics):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	default:
		s.logger.Error("request failed",
			"action", action,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to "+action)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// pageParams reads limit and offset. Range checks are left to the service.
func pageParams(w http.ResponseWriter, r *http.Request, defaultLimit int) (limit, offset int, ok bool) {
	limit, offset = defaultLimit, 0
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be an integer")
			return 0, 0, false
		}
		limit = parsed
		if limit == 0 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be at least 1")
			return 0, 0, false
		}
	}
	if v := q.Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "offset must be an integer")
			return 0, 0, false
		}
		offset = parsed
	}
	return limit, offset, true
}

func queryInt64(r *http.Request, name string) (*int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &n, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a boolean", name)
	}
	return &b, nil
}

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid JSON body: %w", err)
}
