// Package offline implements the offline cache controller: the policy that
// decides, per outgoing request, whether to answer from a versioned cache
// store, fall back to the network, or synthesize a placeholder response.
//
// A Controller moves through install, activate and fetch phases. Install
// pre-caches a manifest of core assets on a best-effort basis; activate purges
// every older version of the cache and claims open clients; fetch applies the
// request policy. Events reach the controller through a Dispatcher so each
// phase can be driven and tested on its own.
package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Zachkp/portfolio/internal/cachestore"
)

// State is the controller lifecycle state.
type State int

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Route is the policy decision for a request.
type Route int

const (
	RoutePassThrough Route = iota
	RouteNavigation
	RouteSubresource
)

func (r Route) String() string {
	switch r {
	case RoutePassThrough:
		return "pass-through"
	case RouteNavigation:
		return "navigation"
	case RouteSubresource:
		return "subresource"
	}
	return fmt.Sprintf("Route(%d)", int(r))
}

// Controller is one version of the offline cache controller.
type Controller struct {
	cfg     Config
	storage cachestore.Storage
	fetcher Fetcher
	clients Clients
	logger  *slog.Logger

	mu    sync.RWMutex
	state State
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClients sets the clients claimed on activation.
func WithClients(clients Clients) Option {
	return func(c *Controller) {
		c.clients = clients
	}
}

// New returns a controller in the parsed state.
func New(cfg Config, storage cachestore.Storage, fetcher Fetcher, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if storage == nil {
		return nil, fmt.Errorf("%w: storage is required", ErrInvalidConfig)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher is required", ErrInvalidConfig)
	}
	if cfg.InstallConcurrency <= 0 {
		cfg.InstallConcurrency = 1
	}
	c := &Controller{
		cfg:     cfg,
		storage: storage,
		fetcher: fetcher,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the controller's configuration.
func (c *Controller) Config() Config { return c.cfg }

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Controlling returns the cache name when the controller is active, and the
// empty string otherwise.
func (c *Controller) Controlling() string {
	if c.State() != StateActivated {
		return ""
	}
	return c.cfg.CacheName()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Debug("controller state", slog.String("from", c.state.String()), slog.String("to", s.String()))
	c.state = s
}

// Register binds the controller's lifecycle handlers into d.
func (c *Controller) Register(d *Dispatcher) {
	d.Register(EventInstall, func(ctx context.Context, ev Event) error {
		ie, ok := ev.(*InstallEvent)
		if !ok {
			return fmt.Errorf("install handler got %T", ev)
		}
		cached, err := c.Install(ctx)
		ie.Cached = cached
		return err
	})
	d.Register(EventActivate, func(ctx context.Context, ev Event) error {
		ae, ok := ev.(*ActivateEvent)
		if !ok {
			return fmt.Errorf("activate handler got %T", ev)
		}
		deleted, err := c.Activate(ctx)
		ae.Deleted = deleted
		return err
	})
	d.Register(EventFetch, func(ctx context.Context, ev Event) error {
		fe, ok := ev.(*FetchEvent)
		if !ok {
			return fmt.Errorf("fetch handler got %T", ev)
		}
		if resp, src, handled := c.Fetch(ctx, fe.Request); handled {
			fe.RespondWith(resp, src)
		}
		return nil
	})
}

// Install opens the current cache store and pre-caches the manifest. Failed
// manifest entries are logged and skipped; Install only fails if the store
// itself cannot be opened. It returns the URLs that were cached.
func (c *Controller) Install(ctx context.Context) ([]string, error) {
	c.setState(StateInstalling)
	name := c.cfg.CacheName()

	cache, err := c.storage.Open(ctx, name)
	if err != nil {
		c.setState(StateRedundant)
		return nil, fmt.Errorf("install: open cache %q: %w", name, err)
	}

	urls := c.manifestURLs()
	var (
		mu     sync.Mutex
		cached []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.InstallConcurrency)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			req, err := NewRequest(http.MethodGet, u, c.modeFor(u))
			if err != nil {
				c.logger.Warn("precache skipped", slog.String("url", u), slog.Any("error", err))
				return nil
			}
			resp, err := c.fetcher.Fetch(gctx, req)
			if err != nil {
				c.logger.Warn("precache fetch failed", slog.String("url", u), slog.Any("error", err))
				return nil
			}
			if resp.Status != http.StatusOK {
				c.logger.Warn("precache bad status", slog.String("url", u), slog.Int("status", resp.Status))
				return nil
			}
			if err := cache.Put(gctx, req.key(), resp.entry()); err != nil {
				c.logger.Warn("precache put failed", slog.String("url", u), slog.Any("error", err))
				return nil
			}
			mu.Lock()
			cached = append(cached, u)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(cached)
	c.logger.Info("installed", slog.String("cache", name), slog.Int("cached", len(cached)), slog.Int("manifest", len(urls)))
	c.setState(StateInstalled)
	return cached, nil
}

func (c *Controller) manifestURLs() []string {
	resolved, skipped := c.cfg.ExpandManifest()
	for _, entry := range skipped {
		c.logger.Warn("manifest entry skipped", slog.String("entry", entry))
	}
	out := make([]string, 0, len(resolved))
	for _, u := range resolved {
		out = append(out, u.String())
	}
	return out
}

func (c *Controller) modeFor(rawURL string) Mode {
	u, err := c.cfg.resolve(rawURL)
	if err == nil && !c.cfg.SameOrigin(u) {
		return ModeCORS
	}
	return ModeSameOrigin
}

// Activate deletes every stale version of the cache and claims all clients.
// It returns the names of deleted stores. If any stale store cannot be
// deleted, Activate returns an error, claims nothing and leaves the
// controller installed.
func (c *Controller) Activate(ctx context.Context) ([]string, error) {
	switch s := c.State(); s {
	case StateInstalled, StateActivated:
	default:
		return nil, fmt.Errorf("activate: controller is %s", s)
	}
	c.setState(StateActivating)
	current := c.cfg.CacheName()

	names, err := c.storage.Names(ctx)
	if err != nil {
		c.setState(StateInstalled)
		return nil, fmt.Errorf("activate: list caches: %w", err)
	}
	var (
		deleted []string
		errs    []error
	)
	for _, name := range cachestore.Stale(names, c.cfg.Prefix, current) {
		ok, err := c.storage.Delete(ctx, name)
		if err != nil {
			c.logger.Warn("delete stale cache failed", slog.String("cache", name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("delete %q: %w", name, err))
			continue
		}
		if ok {
			c.logger.Info("deleted stale cache", slog.String("cache", name))
			deleted = append(deleted, name)
		}
	}
	if len(errs) > 0 {
		// Stay installed so activation can be retried.
		c.setState(StateInstalled)
		return deleted, fmt.Errorf("activate: %w", errors.Join(errs...))
	}

	if c.clients != nil {
		if err := c.clients.Claim(ctx, current); err != nil {
			c.logger.Warn("claim clients failed", slog.Any("error", err))
		}
	}
	c.setState(StateActivated)
	return deleted, nil
}

// Decide applies the interception rules to req without touching the cache.
func (c *Controller) Decide(req *Request) Route {
	if req == nil || req.URL == nil || req.Method != http.MethodGet {
		return RoutePassThrough
	}
	switch strings.ToLower(req.URL.Scheme) {
	case "http", "https":
	default:
		return RoutePassThrough
	}
	if !c.cfg.SameOrigin(req.URL) && !c.cfg.isFontHost(req.URL.Hostname()) {
		return RoutePassThrough
	}
	if req.IsNavigation() {
		return RouteNavigation
	}
	return RouteSubresource
}

// Fetch handles an intercepted request. handled is false when the request
// must pass through to the network untouched.
func (c *Controller) Fetch(ctx context.Context, req *Request) (resp *Response, src Source, handled bool) {
	if c.State() != StateActivated {
		return nil, "", false
	}
	var ok bool
	switch c.Decide(req) {
	case RouteNavigation:
		resp, src, ok = c.navigate(ctx, req)
	case RouteSubresource:
		resp, src, ok = c.subresource(ctx, req)
	}
	if !ok {
		return nil, "", false
	}
	c.logger.Debug("fetch", slog.String("url", req.URL.String()), slog.String("source", string(src)), slog.Int("status", resp.Status))
	return resp, src, true
}

func (c *Controller) navigate(ctx context.Context, req *Request) (*Response, Source, bool) {
	cache := c.open(ctx)
	if cache != nil {
		keys := []cachestore.Key{req.key()}
		for _, ref := range c.cfg.Shell {
			if u, err := c.cfg.resolve(ref); err == nil {
				keys = append(keys, cachestore.NewKey(http.MethodGet, u.String()))
			}
		}
		for _, k := range keys {
			if resp := c.match(ctx, cache, k); resp != nil {
				return resp, SourceCache, true
			}
		}
	}

	resp, err := c.fetcher.Fetch(ctx, req)
	if errors.Is(err, ErrTooLarge) {
		c.logger.Info("response too large, passing through", slog.String("url", req.URL.String()))
		return nil, "", false
	}
	if err != nil {
		c.logger.Info("navigation offline", slog.String("url", req.URL.String()), slog.Any("error", err))
		return offlineResponse(), SourceFallback, true
	}
	if resp.Status == http.StatusOK && resp.Type == TypeBasic {
		c.store(ctx, cache, req, resp)
	}
	return resp, SourceNetwork, true
}

func (c *Controller) subresource(ctx context.Context, req *Request) (*Response, Source, bool) {
	cache := c.open(ctx)
	if cache != nil {
		if resp := c.match(ctx, cache, req.key()); resp != nil {
			return resp, SourceCache, true
		}
	}

	resp, err := c.fetcher.Fetch(ctx, req)
	if errors.Is(err, ErrTooLarge) {
		c.logger.Info("response too large, passing through", slog.String("url", req.URL.String()))
		return nil, "", false
	}
	if err != nil {
		c.logger.Info("fetch offline", slog.String("url", req.URL.String()), slog.Any("error", err))
		if req.Accepts("image/") {
			return placeholderResponse(), SourceFallback, true
		}
		return unavailableResponse(), SourceFallback, true
	}
	if c.cacheable(req, resp) {
		c.store(ctx, cache, req, resp)
	}
	return resp, SourceNetwork, true
}

// cacheable accepts 200 responses that are same-origin, or CORS responses
// from an allow-listed font host. Opaque responses are never stored.
func (c *Controller) cacheable(req *Request, resp *Response) bool {
	if resp.Status != http.StatusOK {
		return false
	}
	switch resp.Type {
	case TypeBasic:
		return true
	case TypeCORS:
		return c.cfg.isFontHost(req.URL.Hostname())
	}
	return false
}

func (c *Controller) open(ctx context.Context) cachestore.Cache {
	cache, err := c.storage.Open(ctx, c.cfg.CacheName())
	if err != nil {
		c.logger.Warn("open cache failed", slog.String("cache", c.cfg.CacheName()), slog.Any("error", err))
		return nil
	}
	return cache
}

func (c *Controller) match(ctx context.Context, cache cachestore.Cache, key cachestore.Key) *Response {
	e, err := cache.Match(ctx, key)
	if err != nil {
		if !errors.Is(err, cachestore.ErrNotFound) {
			c.logger.Warn("cache match failed", slog.String("key", key.String()), slog.Any("error", err))
		}
		return nil
	}
	return fromEntry(e)
}

func (c *Controller) store(ctx context.Context, cache cachestore.Cache, req *Request, resp *Response) {
	if cache == nil {
		return
	}
	if err := cache.Put(ctx, req.key(), resp.Clone().entry()); err != nil {
		c.logger.Warn("cache put failed", slog.String("url", req.URL.String()), slog.Any("error", err))
	}
}
