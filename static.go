package main

import (
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// attachStatic serves the built frontend from disk when one is present:
//  1. Intercepts GET/HEAD requests not under /api
//  2. If a static file matches, serve it directly and Abort
//  3. If no match and the path has no '.' and Accept includes text/html,
//     treat it as an SPA route and serve index.html
//  4. otherwise pass through
func attachStatic(engine *gin.Engine) {
	distFS := resolveFrontendFS()
	if distFS == nil {
		return
	}

	fileServer := http.FileServer(http.FS(distFS))

	engine.Use(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			return
		}
		p := c.Request.URL.Path
		// Let API + websocket routes fall through.
		if strings.HasPrefix(p, "/api") || p == "/healthz" {
			return
		}

		trimmed := strings.TrimPrefix(p, "/")
		if trimmed != "" {
			if f, err := distFS.Open(trimmed); err == nil {
				_ = f.Close()
				if fi, serr := fs.Stat(distFS, trimmed); serr == nil && !fi.IsDir() {
					fileServer.ServeHTTP(c.Writer, c.Request)
					c.Abort()
					return
				}
			}
		}

		// SPA fallback: serve index.html for client-side routes.
		if strings.Contains(trimmed, ".") || !acceptHTML(c.Request.Header.Get("Accept")) {
			return
		}
		b, err := fs.ReadFile(distFS, "index.html")
		if err != nil || len(b) == 0 {
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "text/html; charset=utf-8", b)
		c.Abort()
	})
}

func resolveFrontendFS() fs.FS {
	wd, err := os.Getwd()
	if err != nil {
		return nil
	}
	candidates := []string{
		filepath.Join(wd, "frontend", "dist"),
		filepath.Join(wd, "frontend"),
	}
	for _, dir := range candidates {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			dfs := os.DirFS(dir)
			if _, err := fs.Stat(dfs, "index.html"); err == nil {
				return dfs
			}
		}
	}
	return nil
}

// acceptHTML determines if the given accept header string indicates
// that the client accepts HTML content.
func acceptHTML(accept string) bool {
	// Treat missing Accept as HTML navigation (common in some embedded/webview cases).
	if accept == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		p := strings.TrimSpace(strings.ToLower(part))
		if strings.HasPrefix(p, "text/html") || strings.HasPrefix(p, "application/xhtml+xml") {
			return true
		}
	}
	return false
}
