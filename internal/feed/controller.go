package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/quill/internal/cache"
	"github.com/mmcdole/quill/internal/domain"
)

// ErrOutOfOrder is returned when a page arrives that is not the next one
var ErrOutOfOrder = errors.New("feed: page out of order")

// State is the controller's lifecycle state
type State int

const (
	StateIdle State = iota
	StateLoadingFirst
	StateReady
	StateLoadingNext
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingFirst:
		return "loadingFirstPage"
	case StateReady:
		return "ready"
	case StateLoadingNext:
		return "loadingNextPage"
	case StateError:
		return "error"
	}
	return "unknown"
}

// PageFetcher loads one page of posts
type PageFetcher func(ctx context.Context, page int) (domain.PostPage, error)

// Request is a page fetch the controller has committed to. It must be
// passed back to Run so stale results can be recognised.
type Request struct {
	Page int
	seq  uint64
}

// Controller drives an append-only, server-paginated post list.
// Trigger methods decide whether a fetch is due and return a Request; Run
// performs it. Only one request is in flight at a time.
type Controller struct {
	fetch  PageFetcher
	logger *slog.Logger

	mu      sync.Mutex
	pages   []domain.PostPage
	state   State
	prior   State // restored when an in-flight request is discarded
	err     error
	hasNext bool
	seq     uint64
}

// New creates a controller in the idle state
func New(fetch PageFetcher, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{fetch: fetch, logger: logger}
}

// Start requests the first page. It only fires from the idle state.
func (c *Controller) Start() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return Request{}, false
	}
	return c.beginLocked(StateLoadingFirst, 1), true
}

// Evaluate is called whenever the visible window changes. It requests the
// next page when the last item is visible, the server has more, and
// nothing is in flight. It is level-triggered: the same position can be
// reported repeatedly without causing duplicate requests.
func (c *Controller) Evaluate(lastVisible int) (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || !c.hasNext {
		return Request{}, false
	}
	if lastVisible < c.countLocked()-1 {
		return Request{}, false
	}
	return c.beginLocked(StateLoadingNext, len(c.pages)+1), true
}

// Retry re-issues the request that failed. Errors are never retried
// automatically.
func (c *Controller) Retry() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateError {
		return Request{}, false
	}
	c.err = nil
	if len(c.pages) == 0 {
		c.prior = StateIdle
		return c.beginLocked(StateLoadingFirst, 1), true
	}
	c.prior = StateReady
	return c.beginLocked(StateLoadingNext, len(c.pages)+1), true
}

func (c *Controller) beginLocked(state State, page int) Request {
	if c.state != StateError {
		c.prior = c.state
	}
	c.state = state
	c.logger.Debug("feed request", "page", page, "state", state.String())
	return Request{Page: page, seq: c.seq}
}

// Run performs req and applies its result. A result for a request that was
// superseded by Reset, or whose ctx ended, is dropped without changing the
// list and the error is returned for the caller to ignore.
func (c *Controller) Run(ctx context.Context, req Request) error {
	page, err := c.fetch(ctx, req.Page)
	if err == nil && ctx.Err() != nil {
		err = cache.ErrDiscarded
	}
	return c.apply(req, page, err)
}

func (c *Controller) apply(req Request, page domain.PostPage, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.seq != c.seq {
		c.logger.Debug("feed result superseded", "page", req.Page)
		return cache.ErrDiscarded
	}

	if isDiscard(err) {
		c.state = c.prior
		c.logger.Debug("feed result discarded", "page", req.Page)
		return err
	}

	if err != nil {
		c.state = StateError
		c.err = err
		c.logger.Warn("feed page failed", "page", req.Page, "error", err)
		return err
	}

	expected := len(c.pages) + 1
	if page.Page != expected || req.Page != expected {
		c.state = c.prior
		c.logger.Error("feed page out of order", "got", page.Page, "want", expected)
		return fmt.Errorf("%w: got page %d, want %d", ErrOutOfOrder, page.Page, expected)
	}

	c.pages = append(c.pages, page)
	c.hasNext = page.HasNext
	c.state = StateReady
	c.logger.Debug("feed page applied", "page", page.Page, "count", len(page.Posts), "hasNext", page.HasNext)
	return nil
}

func isDiscard(err error) bool {
	return errors.Is(err, cache.ErrDiscarded) || errors.Is(err, context.Canceled)
}

// Refresh refetches every loaded page in order and swaps them in at once.
// Used after a mutation invalidated the listing.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil
	}
	n := len(c.pages)
	seq := c.seq
	c.prior = c.state
	c.state = StateLoadingNext
	c.mu.Unlock()

	var pages []domain.PostPage
	hasNext := false
	var fetchErr error
	for p := 1; p <= n; p++ {
		page, err := c.fetch(ctx, p)
		if err != nil {
			// A page that disappeared ends the list early
			if errors.Is(err, domain.ErrNotFound) && p > 1 {
				hasNext = false
				break
			}
			fetchErr = err
			break
		}
		pages = append(pages, page)
		hasNext = page.HasNext
		if !page.HasNext {
			break
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return cache.ErrDiscarded
	}
	if isDiscard(fetchErr) {
		c.state = c.prior
		return fetchErr
	}
	if fetchErr != nil {
		c.state = StateReady
		c.logger.Warn("feed refresh failed", "error", fetchErr)
		return fetchErr
	}
	c.pages = pages
	// Exhaustion is permanent for the controller's lifetime
	c.hasNext = c.hasNext && hasNext
	c.state = StateReady
	c.logger.Debug("feed refreshed", "pages", len(pages))
	return nil
}

// Reset drops every page and returns to idle. Results of requests issued
// before the reset are discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.pages = nil
	c.state = StateIdle
	c.prior = StateIdle
	c.err = nil
	c.hasNext = false
}

// Items returns the posts of every loaded page in order. A post that moved
// across a page boundary between fetches is listed once.
func (c *Controller) Items() []domain.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsLocked()
}

func (c *Controller) itemsLocked() []domain.Post {
	seen := make(map[int64]struct{})
	var out []domain.Post
	for _, p := range c.pages {
		for _, post := range p.Posts {
			if _, dup := seen[post.ID]; dup {
				continue
			}
			seen[post.ID] = struct{}{}
			out = append(out, post)
		}
	}
	return out
}

func (c *Controller) countLocked() int {
	return len(c.itemsLocked())
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure that put the controller in the error state
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// HasNext reports whether the server indicated more pages
func (c *Controller) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasNext
}

// Pages returns how many pages have been applied
func (c *Controller) Pages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}
