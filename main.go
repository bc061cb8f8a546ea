package main

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Zachkp/portfolio/internal/cachestore"
	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/offline"
	"github.com/Zachkp/portfolio/internal/pwa"
)

//go:embed templates static
var siteFS embed.FS

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "portfolio",
		Short:   "Portfolio site with offline support",
		Version: version,
	}
	root.AddCommand(
		newServeCmd(),
		newProxyCmd(),
		newCacheCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the portfolio site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			gin.SetMode(cfg.GinMode)

			storage, err := cachestore.OpenSQLite(cfg.DBPath, cachestore.WithCompression(cfg.Offline.Compress))
			if err != nil {
				return err
			}
			defer storage.Close()

			r, err := newRouter(cfg, storage)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, ":"+cfg.Port, r)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default "+config.DefaultPath+" if present)")
	return cmd
}

// run serves h on addr until ctx is cancelled.
func run(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *config.Config, storage cachestore.Storage) (*gin.Engine, error) {
	oc, err := cfg.OfflineController(siteFS)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.ParseFS(siteFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(siteFS, "static")
	if err != nil {
		return nil, err
	}

	var sw bytes.Buffer
	if err := pwa.ServiceWorker(&sw, oc); err != nil {
		return nil, err
	}
	manifest := pwa.DefaultManifest(SiteName, Tagline)

	r := gin.Default()
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(static))

	// Home page route
	home := func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", gin.H{
			"siteName": SiteName,
			"tagline":  Tagline,
			"aboutMe":  AboutMe,
			"projects": Projects,
		})
	}
	r.GET("/", home)
	r.GET("/index.html", home)

	r.GET("/offline.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", offline.OfflinePage())
	})

	// Service worker script, rendered from the cache controller config
	r.GET("/sw.js", func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache")
		c.Header("Service-Worker-Allowed", "/")
		c.Data(http.StatusOK, "application/javascript; charset=utf-8", sw.Bytes())
	})

	r.GET("/manifest.webmanifest", func(c *gin.Context) {
		c.Header("Content-Type", "application/manifest+json")
		c.JSON(http.StatusOK, manifest)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cache": oc.CacheName()})
	})

	admin, err := newAdmin(cfg, storage, slog.Default())
	if err != nil {
		return nil, err
	}
	admin.setupRoutes(r)
	return r, nil
}
