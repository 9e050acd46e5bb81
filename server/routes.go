// Package server exposes the monitor API: a read-only HTTP view over the
// runs directory so dashboards and remote shells can watch long sweeps
// without touching the filesystem the trainer writes to.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/envconfig"
	"github.com/edgarlab/secrnn/logutil"
	"github.com/edgarlab/secrnn/runs"
	"github.com/edgarlab/secrnn/version"
)

type Server struct{}

func (s *Server) ListHandler(c *gin.Context) {
	summaries, err := runs.List(envconfig.RunsDir())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{Runs: summaries})
}

func (s *Server) ShowHandler(c *gin.Context) {
	name := c.Param("name")

	detail, err := runs.Show(envconfig.RunsDir(), name)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("run %q not found", name)})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (s *Server) GenerateRoutes() http.Handler {
	config := cors.DefaultConfig()
	config.AllowWildcard = true
	config.AllowBrowserExtensions = true
	config.AllowHeaders = []string{"Authorization", "Content-Type", "User-Agent", "Accept"}
	config.AllowOrigins = envconfig.Origins()

	r := gin.Default()
	r.Use(cors.New(config))

	r.GET("/api/runs/:name", s.ShowHandler)

	// The client probes with HEAD requests, so both verbs are wired.
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		r.Handle(method, "/", func(c *gin.Context) {
			c.String(http.StatusOK, "Secrnn is running")
		})
		r.Handle(method, "/api/runs", s.ListHandler)
		r.Handle(method, "/api/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"version": version.Version})
		})
	}

	return r
}

func Serve(ln net.Listener) error {
	level := slog.LevelInfo
	if envconfig.Debug() {
		level = slog.LevelDebug
	}
	slog.SetDefault(logutil.NewLogger(os.Stderr, level))
	slog.Info("server config", "env", envconfig.Values())

	var s Server
	srvr := &http.Server{
		Handler: s.GenerateRoutes(),
	}

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))

	return srvr.Serve(ln)
}
