package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Zachkp/portfolio/internal/cachestore"
	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/offline"
)

const clientCookie = "offline_client"

func newProxyCmd() *cobra.Command {
	var (
		configPath string
		upstreamS  string
		listen     string
		memory     bool
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run the offline cache controller in front of a running site",
		Long: `proxy installs and activates the offline cache controller, then answers
requests the way the site's service worker would: from the versioned cache,
from the upstream, or with an offline placeholder when the upstream is down.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			gin.SetMode(cfg.GinMode)
			upstream, err := url.Parse(upstreamS)
			if err != nil || upstream.Host == "" {
				return fmt.Errorf("invalid --upstream %q", upstreamS)
			}
			oc, err := cfg.OfflineController(siteFS)
			if err != nil {
				return err
			}

			var storage cachestore.Storage
			if memory {
				storage = cachestore.NewMemory()
			} else {
				sq, err := cachestore.OpenSQLite(cfg.DBPath, cachestore.WithCompression(cfg.Offline.Compress))
				if err != nil {
					return err
				}
				defer sq.Close()
				storage = sq
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := newOfflineProxy(ctx, oc, storage, upstream, logger)
			if err != nil {
				return err
			}
			return run(ctx, listen, p.router())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&upstreamS, "upstream", "http://localhost:8080", "site to proxy")
	cmd.Flags().StringVar(&listen, "listen", ":8081", "address to listen on")
	cmd.Flags().BoolVar(&memory, "memory", false, "keep caches in memory instead of the database")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every intercepted request")
	return cmd
}

type offlineProxy struct {
	ctrl       *offline.Controller
	dispatcher *offline.Dispatcher
	clients    *offline.ClientSet
	origin     *url.URL
	passthru   *httputil.ReverseProxy
}

// newOfflineProxy builds the controller and runs install and activate.
func newOfflineProxy(ctx context.Context, oc offline.Config, storage cachestore.Storage, upstream *url.URL, logger *slog.Logger) (*offlineProxy, error) {
	toUpstream := func(u *url.URL) *url.URL {
		if !oc.SameOrigin(u) {
			return u
		}
		cp := *u
		cp.Scheme = upstream.Scheme
		cp.Host = upstream.Host
		return &cp
	}
	fetcher := &offline.HTTPFetcher{
		Client:  &http.Client{},
		Origin:  oc.Origin,
		Rewrite: toUpstream,
	}

	clients := offline.NewClientSet()
	ctrl, err := offline.New(oc, storage, fetcher, offline.WithLogger(logger), offline.WithClients(clients))
	if err != nil {
		return nil, err
	}
	d := offline.NewDispatcher()
	ctrl.Register(d)

	install := &offline.InstallEvent{}
	if err := d.Dispatch(ctx, install); err != nil {
		return nil, err
	}
	log.Printf("Installed %s with %d cached assets", oc.CacheName(), len(install.Cached))

	activate := &offline.ActivateEvent{}
	if err := d.Dispatch(ctx, activate); err != nil {
		return nil, err
	}
	if len(activate.Deleted) > 0 {
		log.Printf("Removed stale caches: %s", strings.Join(activate.Deleted, ", "))
	}

	passthru := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			if pr.In.URL.IsAbs() && !oc.SameOrigin(pr.In.URL) {
				pr.Out.Host = pr.Out.URL.Host
				return
			}
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("pass-through failed", slog.String("url", r.URL.String()), slog.Any("error", err))
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	return &offlineProxy{
		ctrl:       ctrl,
		dispatcher: d,
		clients:    clients,
		origin:     oc.Origin,
		passthru:   passthru,
	}, nil
}

func (p *offlineProxy) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.NoRoute(p.handle)
	return r
}

// clientID returns the caller's client id, registering new clients under the
// active controller.
func (p *offlineProxy) clientID(c *gin.Context) string {
	id, err := c.Cookie(clientCookie)
	if err != nil || uuid.Validate(id) != nil {
		id = uuid.NewString()
		c.SetCookie(clientCookie, id, 0, "/", "", false, true)
	}
	p.clients.Add(id, p.ctrl.Controlling())
	return id
}

func (p *offlineProxy) handle(c *gin.Context) {
	id := p.clientID(c)

	ev := offline.NewFetchEvent(offline.FromHTTP(c.Request, p.origin))
	if err := p.dispatcher.Dispatch(c.Request.Context(), ev); err != nil {
		log.Printf("fetch event for client %s: %v", id, err)
	}
	if resp, src, ok := ev.Response(); ok {
		c.Header("X-Offline-Cache", string(src))
		if err := resp.Serve(c.Writer); err != nil {
			log.Printf("write response: %v", err)
		}
		c.Abort()
		return
	}
	p.passthru.ServeHTTP(c.Writer, c.Request)
}
