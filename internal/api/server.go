package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yt-insights/ytreport/internal/config"
	"github.com/yt-insights/ytreport/internal/models"
	"github.com/yt-insights/ytreport/internal/report"
)

// maxServedVideos caps n on report endpoints so one request cannot burn
// the whole daily quota.
const maxServedVideos = 200

// Server represents the API server
type Server struct {
	router  *gin.Engine
	reports *ReportService
	render  report.Options
	count   int
	logger  *slog.Logger
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, reports *ReportService, logger *slog.Logger) *Server {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "Cache-Control", "Pragma"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Type", "Cache-Control"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:  router,
		reports: reports,
		render:  report.Options{TimeFormat: cfg.Report.TimeFormat},
		count:   cfg.Report.Count,
		logger:  logger,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all the routes for the server
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Channel lookup
	s.router.GET("/channel/resolve", s.resolveChannel)
	s.router.GET("/channel/url", s.getChannelByURL)
	s.router.GET("/channel/:id", s.getChannelByID)

	// Videos
	s.router.GET("/channel/:id/videos", s.getChannelVideos)

	// Reports
	s.router.GET("/channel/:id/analytics", s.getChannelAnalytics)
	s.router.GET("/channel/:id/report", s.getChannelReport)
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrChannelNotFound), errors.Is(err, ErrNoVideos):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidChannelInput), errors.Is(err, ErrInvalidCount):
		status = http.StatusBadRequest
	default:
		if _, _, ok := APIErrorReason(err); ok {
			status = http.StatusBadGateway
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// resolveChannel handles /channel/resolve?input=
func (s *Server) resolveChannel(c *gin.Context) {
	input := c.Query("input")
	if input == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "input query parameter is required",
		})
		return
	}

	channelID, err := s.reports.Source().ResolveChannelID(c.Request.Context(), input)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channelId": channelID})
}

// getChannelByID handles requests to get channel by ID
func (s *Server) getChannelByID(c *gin.Context) {
	channel, err := s.reports.Source().GetChannel(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

// getChannelByURL handles requests to get channel by URL
func (s *Server) getChannelByURL(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "url query parameter is required",
		})
		return
	}

	ctx := c.Request.Context()
	channelID, err := s.reports.Source().ResolveChannelID(ctx, url)
	if err != nil {
		s.writeError(c, err)
		return
	}

	channel, err := s.reports.Source().GetChannel(ctx, channelID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

// getChannelVideos handles requests to get channel videos
func (s *Server) getChannelVideos(c *gin.Context) {
	filter := models.VideoFilter{
		SortBy:    models.ParseSortOption(c.Query("sortBy")),
		MaxVideos: 50,
	}
	if n, ok := queryInt(c, "maxVideos"); ok && n > 0 {
		filter.MaxVideos = int(n)
	}
	if n, ok := queryInt(c, "minViews"); ok {
		filter.MinViews = n
	}
	if n, ok := queryInt(c, "minLikes"); ok {
		filter.MinLikes = n
	}
	if filter.MaxVideos > maxServedVideos {
		filter.MaxVideos = maxServedVideos
	}

	ctx := c.Request.Context()
	source := s.reports.Source()
	channel, err := source.GetChannel(ctx, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	videos, err := source.GetLatestVideos(ctx, channel, filter.MaxVideos)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, filter.Apply(videos))
}

// getChannelAnalytics returns the report as JSON.
func (s *Server) getChannelAnalytics(c *gin.Context) {
	rep, ok := s.buildReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rep)
}

// getChannelReport returns the rendered HTML report.
func (s *Server) getChannelReport(c *gin.Context) {
	rep, ok := s.buildReport(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, rep, s.render); err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) buildReport(c *gin.Context) (*models.Report, bool) {
	n := s.count
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxServedVideos {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "n must be an integer between 1 and " + strconv.Itoa(maxServedVideos),
			})
			return nil, false
		}
		n = parsed
	}

	rep, err := s.reports.Report(c.Request.Context(), c.Param("id"), n)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return rep, true
}

func queryInt(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Run serves on the given port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
