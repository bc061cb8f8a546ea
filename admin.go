// admin.go - cookie-token admin area for the offline cache stores
package main

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/cachestore"
	"github.com/Zachkp/portfolio/internal/config"
)

type admin struct {
	token    string
	salt     string
	username string
	password string
	prefix   string
	current  string
	storage  cachestore.Storage
	logger   *slog.Logger
}

// CacheView is one row of the admin cache table.
type CacheView struct {
	cachestore.StoreStats
	Current bool `json:"current"`
	Stale   bool `json:"stale"`
}

func newAdmin(cfg *config.Config, storage cachestore.Storage, logger *slog.Logger) (*admin, error) {
	token, err := generateAdminToken()
	if err != nil {
		return nil, err
	}
	salt, err := generateAdminToken()
	if err != nil {
		return nil, err
	}

	a := &admin{
		token:    token,
		salt:     salt,
		username: cfg.AdminUsername,
		password: cfg.AdminPassword,
		prefix:   cfg.Offline.Prefix,
		current:  cfg.CacheName(),
		storage:  storage,
		logger:   logger,
	}

	// Default credentials for development only
	if a.username == "" || a.password == "" {
		if gin.Mode() != gin.DebugMode {
			log.Println("Admin disabled: set ADMIN_USERNAME and ADMIN_PASSWORD")
			a.username, a.password = "", ""
			return a, nil
		}
		if a.username == "" {
			a.username = "admin"
		}
		if a.password == "" {
			a.password = "admin123"
		}
		log.Println("WARNING: Using default admin credentials. Set ADMIN_USERNAME and ADMIN_PASSWORD.")
		log.Printf("Admin token (dev only): %s", a.token)
	}
	log.Printf("Admin access available at: /admin/login")
	return a, nil
}

func generateAdminToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate admin token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash IP address so logs never carry raw client addresses
func (a *admin) hashIP(ip string) string {
	h := sha256.New()
	h.Write([]byte(ip + a.salt))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (a *admin) enabled() bool {
	return a.username != "" && a.password != ""
}

// Middleware to check admin authentication
func (a *admin) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("admin_token")
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *admin) checkCredentials(username, password string) bool {
	if !a.enabled() {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	return userOK && passOK
}

func (a *admin) cacheViews(c *gin.Context) ([]CacheView, error) {
	stats, err := cachestore.Stats(c.Request.Context(), a.storage)
	if err != nil {
		return nil, err
	}
	stale := make(map[string]bool)
	names := make([]string, 0, len(stats))
	for _, st := range stats {
		names = append(names, st.Name)
	}
	for _, n := range cachestore.Stale(names, a.prefix, a.current) {
		stale[n] = true
	}

	views := make([]CacheView, 0, len(stats))
	for _, st := range stats {
		views = append(views, CacheView{
			StoreStats: st,
			Current:    st.Name == a.current,
			Stale:      stale[st.Name],
		})
	}
	return views, nil
}

// Setup all admin routes
func (a *admin) setupRoutes(r *gin.Engine) {
	// Admin login page
	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{
			"title": "Admin Login",
		})
	})

	// Admin login handler
	r.POST("/admin/login", func(c *gin.Context) {
		username := c.PostForm("username")
		password := c.PostForm("password")

		if a.checkCredentials(username, password) {
			// Secure cookie (24 hours)
			c.SetCookie("admin_token", a.token, 3600*24, "/admin", "", false, true)
			log.Printf("Admin login successful from %s", a.hashIP(c.ClientIP()))
			c.Redirect(http.StatusFound, "/admin/caches")
			return
		}
		log.Printf("Failed admin login attempt from %s", a.hashIP(c.ClientIP()))
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
			"title": "Admin Login",
			"error": "Invalid credentials",
		})
	})

	// Admin logout
	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie("admin_token", "", -1, "/admin", "", false, true)
		log.Printf("Admin logout from %s", a.hashIP(c.ClientIP()))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	// Protected admin routes group
	adminGroup := r.Group("/admin")
	adminGroup.Use(a.authMiddleware())

	adminGroup.GET("/caches", func(c *gin.Context) {
		views, err := a.cacheViews(c)
		if err != nil {
			a.logger.Error("load cache stats", slog.Any("error", err))
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load cache stores",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-caches.html", gin.H{
			"caches":  views,
			"current": a.current,
		})
	})

	// Admin API endpoints for HTMX/AJAX
	adminGroup.GET("/api/caches", func(c *gin.Context) {
		views, err := a.cacheViews(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"current": a.current, "caches": views})
	})

	adminGroup.GET("/api/caches/:name", func(c *gin.Context) {
		name := c.Param("name")
		ctx := c.Request.Context()

		ok, err := a.storage.Has(ctx, name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cache not found"})
			return
		}
		cache, err := a.storage.Open(ctx, name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		keys, err := cache.Keys(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		urls := make([]gin.H, 0, len(keys))
		for _, k := range keys {
			urls = append(urls, gin.H{"method": k.Method, "url": k.URL})
		}
		c.JSON(http.StatusOK, gin.H{"name": name, "entries": urls})
	})

	// Delete one cache store
	adminGroup.DELETE("/caches/:name", func(c *gin.Context) {
		name := c.Param("name")

		deleted, err := a.storage.Delete(c.Request.Context(), name)
		if err != nil {
			log.Printf("Error deleting cache %s: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete cache"})
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cache not found"})
			return
		}

		log.Printf("Cache %s deleted by admin from %s", name, a.hashIP(c.ClientIP()))
		c.JSON(http.StatusOK, gin.H{"message": "Cache deleted successfully"})
	})

	// Remove every stale cache version, same rule as activation
	adminGroup.POST("/caches/purge", func(c *gin.Context) {
		deleted, err := cachestore.PurgeStale(c.Request.Context(), a.storage, a.prefix, a.current)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "deleted": deleted})
			return
		}
		if deleted == nil {
			deleted = []string{}
		}
		log.Printf("Purged %d stale caches, requested from %s", len(deleted), a.hashIP(c.ClientIP()))
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	})
}
