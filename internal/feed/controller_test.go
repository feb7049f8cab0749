package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/blackmichael/snippet-feed/internal/client"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type feedCall struct {
	limit, offset int
}

type feedReply struct {
	page *client.FeedPage
	err  error
}

// fakeAPI answers feed requests from a queue. When gate is set, each call
// blocks until a value is received from it.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []feedCall
	replies []feedReply
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeAPI) Feed(ctx context.Context, limit, offset int) (*client.FeedPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, feedCall{limit, offset})
	var reply feedReply
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	} else {
		reply = feedReply{err: errors.New("no reply queued")}
	}
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return reply.page, reply.err
}

func (f *fakeAPI) queue(page *client.FeedPage, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, feedReply{page, err})
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func makePosts(from, n int) []client.Post {
	posts := make([]client.Post, n)
	for i := range posts {
		id := int64(from + i)
		posts[i] = client.Post{
			ID:      id,
			Content: fmt.Sprintf("post %d", id),
			Topic:   client.Topic{ID: 1, Name: "General"},
		}
	}
	return posts
}

func page(posts []client.Post, hasMore *bool) *client.FeedPage {
	return &client.FeedPage{Posts: posts, HasMore: hasMore}
}

func boolPtr(b bool) *bool { return &b }

func ids(posts []client.Post) []int64 {
	out := make([]int64, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestInitialLoad(t *testing.T) {
	api := &fakeAPI{}
	api.queue(page(makePosts(1, 20), nil), nil)
	c := NewController(api, 20, discardLogger())

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	snap := c.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("expected idle, got %s", snap.State)
	}
	if len(snap.Posts) != 20 || snap.Offset != 20 {
		t.Errorf("expected 20 posts at offset 20, got %d at %d", len(snap.Posts), snap.Offset)
	}
	if !snap.HasMore {
		t.Error("expected hasMore for a full page")
	}
	if api.calls[0] != (feedCall{20, 0}) {
		t.Errorf("unexpected first call %+v", api.calls[0])
	}
}

func TestLoadOnlyOnce(t *testing.T) {
	api := &fakeAPI{}
	api.queue(page(makePosts(1, 3), nil), nil)
	c := NewController(api, 20, discardLogger())

	c.Load(context.Background())
	c.Load(context.Background())

	if api.callCount() != 1 {
		t.Errorf("expected a single call, got %d", api.callCount())
	}
}

func TestShortPageStopsPagination(t *testing.T) {
	api := &fakeAPI{}
	api.queue(page(makePosts(1, 5), nil), nil)
	c := NewController(api, 20, discardLogger())

	c.Load(context.Background())
	if c.Snapshot().HasMore {
		t.Fatal("expected hasMore=false for a short page")
	}

	if err := c.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if api.callCount() != 1 {
		t.Errorf("expected no further call, got %d calls", api.callCount())
	}
}

func TestServerHasMoreFlagWins(t *testing.T) {
	tests := []struct {
		name    string
		posts   int
		flag    *bool
		hasMore bool
	}{
		{"short page with has_more true", 5, boolPtr(true), true},
		{"full page with has_more false", 20, boolPtr(false), false},
		{"full page without flag", 20, nil, true},
		{"empty page without flag", 0, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			api.queue(page(makePosts(1, tt.posts), tt.flag), nil)
			c := NewController(api, 20, discardLogger())
			c.Load(context.Background())

			if got := c.Snapshot().HasMore; got != tt.hasMore {
				t.Errorf("expected hasMore=%v, got %v", tt.hasMore, got)
			}
		})
	}
}

func TestAppendConcatenatesAndAdvancesByReturnedCount(t *testing.T) {
	api := &fakeAPI{}
	api.queue(page(makePosts(1, 10), boolPtr(true)), nil)
	api.queue(page(makePosts(11, 7), boolPtr(true)), nil)
	api.queue(page(makePosts(18, 3), boolPtr(false)), nil)
	c := NewController(api, 10, discardLogger())

	ctx := context.Background()
	c.Load(ctx)
	c.LoadMore(ctx)
	c.LoadMore(ctx)
	c.LoadMore(ctx)

	snap := c.Snapshot()
	if snap.Offset != 20 {
		t.Errorf("expected offset 10+7+3=20, got %d", snap.Offset)
	}
	if snap.HasMore {
		t.Error("expected pagination to stop")
	}
	got := ids(snap.Posts)
	for i, id := range got {
		if id != int64(i+1) {
			t.Fatalf("posts out of order: %v", got)
		}
	}
	if len(got) != 20 {
		t.Errorf("expected 20 posts, got %d", len(got))
	}

	wantOffsets := []int{0, 10, 17}
	if api.callCount() != len(wantOffsets) {
		t.Fatalf("expected %d calls, got %d", len(wantOffsets), api.callCount())
	}
	for i, want := range wantOffsets {
		if api.calls[i].offset != want {
			t.Errorf("call %d: expected offset %d, got %d", i, want, api.calls[i].offset)
		}
	}
}

func TestAppendSkipsHeldPosts(t *testing.T) {
	api := &fakeAPI{}
	api.queue(page(makePosts(1, 3), boolPtr(true)), nil)
	api.queue(page(makePosts(3, 3), boolPtr(false)), nil)
	c := NewController(api, 3, discardLogger())

	c.Load(context.Background())
	c.LoadMore(context.Background())

	snap := c.Snapshot()
	if len(snap.Posts) != 5 {
		t.Errorf("expected duplicate post to be skipped, got ids %v", ids(snap.Posts))
	}
	if snap.Offset != 6 {
		t.Errorf("expected offset to follow the server count, got %d", snap.Offset)
	}
}

func TestInitialLoadFailureShowsPlaceholders(t *testing.T) {
	api := &fakeAPI{}
	netErr := &client.NetworkError{Cause: errors.New("connection refused")}
	api.queue(nil, netErr)
	c := NewController(api, 20, discardLogger())
	c.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }

	err := c.Load(context.Background())
	if !errors.Is(err, netErr) {
		t.Fatalf("expected network error, got %v", err)
	}

	snap := c.Snapshot()
	if snap.State != StateError {
		t.Errorf("expected error state, got %s", snap.State)
	}
	if snap.HasMore {
		t.Error("expected hasMore=false")
	}
	if len(snap.Posts) != 5 {
		t.Fatalf("expected 5 placeholders, got %d", len(snap.Posts))
	}
	if !snap.Placeholder {
		t.Error("expected snapshot marked as placeholder")
	}
	for _, p := range snap.Posts {
		if p.LikeStatus || p.DislikeStatus {
			t.Errorf("placeholder %d has feedback set", p.ID)
		}
		if p.Content == "" || p.Topic.Name == "" || p.Timestamp.IsZero() {
			t.Errorf("placeholder %d incomplete: %+v", p.ID, p)
		}
	}

	c.LoadMore(context.Background())
	if api.callCount() != 1 {
		t.Errorf("expected LoadMore to be blocked, got %d calls", api.callCount())
	}
}

func TestRefreshFailureKeepsLoadedPosts(t *testing.T) {
	api := &fakeAPI{}
	api.queue(page(makePosts(1, 20), nil), nil)
	api.queue(nil, &client.HTTPError{Status: 500})
	c := NewController(api, 20, discardLogger())

	c.Load(context.Background())
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	snap := c.Snapshot()
	if snap.State != StateError {
		t.Errorf("expected error state, got %s", snap.State)
	}
	if got := ids(snap.Posts); len(got) != 20 || got[0] != 1 {
		t.Errorf("expected loaded posts to be kept, got %v", got)
	}
}

func TestRefreshFromErrorReplacesPosts(t *testing.T) {
	api := &fakeAPI{}
	api.queue(nil, errors.New("offline"))
	api.queue(page(makePosts(100, 4), nil), nil)
	c := NewController(api, 20, discardLogger())

	c.Load(context.Background())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	snap := c.Snapshot()
	if snap.State != StateIdle || snap.Err != nil {
		t.Errorf("expected idle without error, got %s %v", snap.State, snap.Err)
	}
	if got := ids(snap.Posts); len(got) != 4 || got[0] != 100 {
		t.Errorf("expected placeholders replaced, got %v", got)
	}
	if snap.Offset != 4 {
		t.Errorf("expected offset reset to 4, got %d", snap.Offset)
	}
	if snap.Placeholder {
		t.Error("expected placeholder flag cleared after a successful refresh")
	}
	if api.calls[1].offset != 0 {
		t.Errorf("expected refresh at offset 0, got %d", api.calls[1].offset)
	}
}

func TestRefreshFailureWithNoPostsShowsPlaceholders(t *testing.T) {
	api := &fakeAPI{}
	api.queue(page([]client.Post{}, boolPtr(false)), nil)
	api.queue(nil, &client.NetworkError{Cause: errors.New("no route to host")})
	c := NewController(api, 20, discardLogger())

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n := len(c.Snapshot().Posts); n != 0 {
		t.Fatalf("expected empty feed, got %d posts", n)
	}
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	snap := c.Snapshot()
	if snap.State != StateError {
		t.Errorf("expected error state, got %s", snap.State)
	}
	if got := ids(snap.Posts); len(got) != 5 || got[0] != 1 || got[4] != 5 {
		t.Errorf("expected placeholders 1..5, got %v", got)
	}
	if snap.HasMore || snap.Offset != 0 {
		t.Errorf("expected hasMore=false offset=0, got %v %d", snap.HasMore, snap.Offset)
	}
}

func TestRefreshAfterAppendsResetsCursorAndResumesPagination(t *testing.T) {
	api := &fakeAPI{}
	api.queue(page(makePosts(1, 10), nil), nil)
	api.queue(page(makePosts(11, 3), nil), nil)
	api.queue(page(makePosts(50, 10), nil), nil)
	api.queue(page(makePosts(60, 10), nil), nil)
	c := NewController(api, 10, discardLogger())
	ctx := context.Background()

	c.Load(ctx)
	c.LoadMore(ctx)
	if snap := c.Snapshot(); snap.HasMore || snap.Offset != 13 {
		t.Fatalf("expected terminal feed at offset 13, got hasMore=%v offset=%d", snap.HasMore, snap.Offset)
	}

	c.LoadMore(ctx)
	if api.callCount() != 2 {
		t.Fatalf("expected LoadMore to be a no-op at the end, got %d calls", api.callCount())
	}

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	snap := c.Snapshot()
	if got := ids(snap.Posts); len(got) != 10 || got[0] != 50 {
		t.Errorf("expected list replaced by the new first page, got %v", got)
	}
	if snap.Offset != 10 || !snap.HasMore || snap.State != StateIdle {
		t.Errorf("expected offset 10, hasMore, idle; got %d %v %s", snap.Offset, snap.HasMore, snap.State)
	}
	if api.calls[2].offset != 0 {
		t.Errorf("expected refresh at offset 0, got %d", api.calls[2].offset)
	}

	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if api.calls[3].offset != 10 {
		t.Errorf("expected LoadMore at offset 10, got %d", api.calls[3].offset)
	}
	if n := len(c.Snapshot().Posts); n != 20 {
		t.Errorf("expected 20 posts after resuming, got %d", n)
	}
}

func TestResetOffsetMatchesHeldPosts(t *testing.T) {
	api := &fakeAPI{}
	posts := append(makePosts(1, 2), makePosts(1, 1)...)
	api.queue(page(posts, boolPtr(true)), nil)
	c := NewController(api, 3, discardLogger())

	c.Load(context.Background())

	snap := c.Snapshot()
	if snap.Offset != len(snap.Posts) {
		t.Errorf("expected offset to equal held count, got offset=%d posts=%d", snap.Offset, len(snap.Posts))
	}
}

func TestLoadMoreFailureStopsPagination(t *testing.T) {
	api := &fakeAPI{}
	api.queue(page(makePosts(1, 20), nil), nil)
	api.queue(nil, errors.New("timeout"))
	c := NewController(api, 20, discardLogger())

	c.Load(context.Background())
	if err := c.LoadMore(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	snap := c.Snapshot()
	if snap.State != StateError || snap.HasMore {
		t.Errorf("expected error state with hasMore=false, got %s %v", snap.State, snap.HasMore)
	}
	if len(snap.Posts) != 20 {
		t.Errorf("expected loaded posts to be kept, got %d", len(snap.Posts))
	}

	c.LoadMore(context.Background())
	if api.callCount() != 2 {
		t.Errorf("expected no call after failure, got %d", api.callCount())
	}
}

func TestLoadMoreBeforeLoadIsNoop(t *testing.T) {
	api := &fakeAPI{}
	c := NewController(api, 20, discardLogger())

	c.LoadMore(context.Background())
	if api.callCount() != 0 {
		t.Errorf("expected no call, got %d", api.callCount())
	}
}

func TestLoadMoreDuringInitialLoadIsNoop(t *testing.T) {
	api := &fakeAPI{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	api.queue(page(makePosts(1, 20), nil), nil)
	c := NewController(api, 20, discardLogger())

	done := make(chan error)
	go func() { done <- c.Load(context.Background()) }()
	<-api.started

	if got := c.Snapshot().State; got != StateInitialLoading {
		t.Errorf("expected initial_loading, got %s", got)
	}
	c.LoadMore(context.Background())
	c.Refresh(context.Background())

	close(api.gate)
	if err := <-done; err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if api.callCount() != 1 {
		t.Errorf("expected a single call while loading, got %d", api.callCount())
	}
}

func TestConcurrentLoadMoreIssuesOneCall(t *testing.T) {
	api := &fakeAPI{}
	api.queue(page(makePosts(1, 20), nil), nil)
	c := NewController(api, 20, discardLogger())
	c.Load(context.Background())

	api.mu.Lock()
	api.gate = make(chan struct{})
	api.started = make(chan struct{}, 1)
	api.mu.Unlock()
	// A final page keeps goroutines scheduled after the append from
	// issuing another call.
	api.queue(page(makePosts(21, 20), boolPtr(false)), nil)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.LoadMore(context.Background())
		}()
	}
	<-api.started
	close(api.gate)
	wg.Wait()

	if api.callCount() != 2 {
		t.Errorf("expected exactly one append call, got %d", api.callCount()-1)
	}
	if n := len(c.Snapshot().Posts); n != 40 {
		t.Errorf("expected 40 posts, got %d", n)
	}
}

func TestStateString(t *testing.T) {
	if StateLoadingMore.String() != "loading_more" {
		t.Errorf("unexpected %q", StateLoadingMore.String())
	}
	if !StateRefreshing.Loading() || StateError.Loading() {
		t.Error("unexpected Loading result")
	}
}
