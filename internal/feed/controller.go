package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blackmichael/snippet-feed/internal/client"
)

// DefaultLimit is the page size used when none is configured.
const DefaultLimit = 20

// API fetches feed pages. *client.Client satisfies it.
type API interface {
	Feed(ctx context.Context, limit, offset int) (*client.FeedPage, error)
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Posts   []client.Post
	State   State
	Err     error
	Offset  int
	Limit   int
	HasMore bool

	// Placeholder reports that Posts is the offline sample set.
	Placeholder bool
}

// Controller owns the loaded post sequence and the pagination cursor. At most
// one feed request is in flight at a time: triggers that arrive while a load
// is active return immediately without issuing a call.
type Controller struct {
	api    API
	limit  int
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	posts     []client.Post
	offset    int
	hasMore   bool
	state     State
	err       error
	activated bool
	sample    bool
}

// NewController creates a controller fetching pages of limit posts. A limit
// below one uses DefaultLimit.
func NewController(api API, limit int, logger *slog.Logger) *Controller {
	if limit < 1 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		api:    api,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}
}

// Load performs the first load of the feed. Calls after the first
// activation are no-ops.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.activated || c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.activated = true
	c.state = StateInitialLoading
	c.mu.Unlock()

	return c.reset(ctx)
}

// Refresh replaces the held posts with the server's current first page. It
// is allowed from Idle and Error.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateError {
		c.mu.Unlock()
		return nil
	}
	c.activated = true
	c.state = StateRefreshing
	c.mu.Unlock()

	return c.reset(ctx)
}

// LoadMore appends the next page. It does nothing unless the controller is
// idle and the server may have more posts.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLoadingMore
	offset := c.offset
	c.mu.Unlock()

	page, err := c.api.Feed(ctx, c.limit, offset)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warn("load more failed", "offset", offset, "error", err)
		c.state = StateError
		c.err = err
		c.hasMore = false
		return err
	}

	held := make(map[int64]struct{}, len(c.posts))
	for _, p := range c.posts {
		held[p.ID] = struct{}{}
	}
	for _, p := range page.Posts {
		if _, dup := held[p.ID]; dup {
			continue
		}
		held[p.ID] = struct{}{}
		c.posts = append(c.posts, p)
	}
	c.offset += len(page.Posts)
	c.hasMore = pageHasMore(page, c.limit)
	c.state = StateIdle
	c.err = nil

	c.logger.Debug("page appended", "received", len(page.Posts), "offset", c.offset, "has_more", c.hasMore)
	return nil
}

// reset fetches the first page for an initial load or refresh. The caller
// has already moved the state to InitialLoading or Refreshing. The page
// replaces the held posts as returned, so the offset equals the held count.
func (c *Controller) reset(ctx context.Context) error {
	page, err := c.api.Feed(ctx, c.limit, 0)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateError
		c.err = err
		if len(c.posts) == 0 {
			c.posts = Placeholders(c.now())
			c.sample = true
			c.offset = 0
			c.hasMore = false
			c.logger.Warn("feed load failed, showing placeholders", "error", err)
		} else {
			c.logger.Warn("feed refresh failed, keeping loaded posts", "held", len(c.posts), "error", err)
		}
		return err
	}

	c.posts = append([]client.Post(nil), page.Posts...)
	c.sample = false
	c.offset = len(c.posts)
	c.hasMore = pageHasMore(page, c.limit)
	c.state = StateIdle
	c.err = nil

	c.logger.Debug("feed loaded", "received", len(page.Posts), "has_more", c.hasMore)
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	posts := make([]client.Post, len(c.posts))
	copy(posts, c.posts)
	return Snapshot{
		Posts:   posts,
		State:   c.state,
		Err:     c.err,
		Offset:  c.offset,
		Limit:   c.limit,
		HasMore: c.hasMore,

		Placeholder: c.sample,
	}
}

// Post returns the held post with the given id.
func (c *Controller) Post(id int64) (client.Post, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.posts {
		if p.ID == id {
			return p, true
		}
	}
	return client.Post{}, false
}

// updatePost applies fn to the held post with the given id under the lock.
// It reports false when no such post is held.
func (c *Controller) updatePost(id int64, fn func(p *client.Post)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.posts {
		if c.posts[i].ID == id {
			fn(&c.posts[i])
			return true
		}
	}
	return false
}

// pageHasMore prefers the server flag and otherwise infers from a full page.
func pageHasMore(page *client.FeedPage, limit int) bool {
	if page.HasMore != nil {
		return *page.HasMore
	}
	return len(page.Posts) == limit
}
