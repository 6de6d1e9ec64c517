package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appconfig "usdgflow/config"
	"usdgflow/internal/cache"
	"usdgflow/internal/history"
	"usdgflow/internal/pipeline"
	"usdgflow/internal/summary"
	"usdgflow/logger"
	"usdgflow/models"
	"usdgflow/reader"
)

// Server hosts the read-only HTTP API over the collected USDG data.
type Server struct {
	cfg        appconfig.HTTPConfig
	pipe       *pipeline.Pipeline
	depthTable *pipeline.DepthTable
	store      *history.Store
	memo       *cache.Memo
	log        *logger.Log
	httpServer *http.Server
}

// NewServer returns nil when the HTTP API is disabled.
func NewServer(cfg appconfig.HTTPConfig, pipe *pipeline.Pipeline, depthTable *pipeline.DepthTable, store *history.Store, memo *cache.Memo) *Server {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	return &Server{
		cfg:        cfg,
		pipe:       pipe,
		depthTable: depthTable,
		store:      store,
		memo:       memo,
		log:        logger.GetLogger(),
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.WithComponent("api").WithFields(logger.Fields{"address": s.cfg.Address}).Info("http api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/api/exchanges", s.handleExchanges)
	router.GET("/api/volume", s.handleMergedVolume)
	router.GET("/api/volume/:exchange", s.handleExchangeVolume)
	router.GET("/api/pairs", s.handlePairs)
	router.GET("/api/assets", s.handleAssets)
	router.GET("/api/reports/weekly", s.handleWeeklyReport)
	router.GET("/api/reports/monthly", s.handleMonthlyReport)
	router.GET("/api/depth", s.handleDepth)

	return router, nil
}

func (s *Server) handleExchanges(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"exchanges": reader.Exchanges})
}

// unified returns the cached merged series, fetching on miss. The fill runs
// detached from any single request context: a caller disconnecting mid-fetch
// must not cache a degraded empty series for every caller that follows.
func (s *Server) unified() (models.UnifiedSeries, error) {
	v, err := s.memo.GetOrFill("unified_series", func() (interface{}, error) {
		return s.pipe.FetchUnified(context.Background()), nil
	})
	if err != nil {
		return models.UnifiedSeries{}, err
	}
	return v.(models.UnifiedSeries), nil
}

func (s *Server) handleMergedVolume(c *gin.Context) {
	u, err := s.unified()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"points":     u.Points,
		"totalPairs": u.TotalPairs(),
	})
}

func (s *Server) handleExchangeVolume(c *gin.Context) {
	exchange := c.Param("exchange")
	if !knownExchange(exchange) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown exchange: " + exchange})
		return
	}

	u, err := s.unified()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	points := make([]models.ExchangeDayPoint, 0, len(u.Points))
	for _, p := range u.Points {
		points = append(points, models.ExchangeDayPoint{Date: p.Date, Volume: p.ByExchange[exchange]})
	}
	c.JSON(http.StatusOK, gin.H{
		"exchange": exchange,
		"pairs":    u.PairsByExchange[exchange],
		"points":   points,
	})
}

func (s *Server) handlePairs(c *gin.Context) {
	u, err := s.unified()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pairsByExchange": u.PairsByExchange,
		"totalPairs":      u.TotalPairs(),
	})
}

func (s *Server) handleAssets(c *gin.Context) {
	u, err := s.unified()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Group listed pairs by the non-USDG asset. The same asset listed on
	// several exchanges stays one key with multiple venues.
	assets := make(map[string][]string)
	for exchange, pairs := range u.PairsByExchange {
		for _, pair := range pairs {
			asset := counterAsset(pair)
			if asset == "" {
				continue
			}
			assets[asset] = append(assets[asset], exchange)
		}
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

func (s *Server) handleWeeklyReport(c *gin.Context) {
	s.periodReport(c, "weekly_report", func(entries []models.LogEntry) summary.Report {
		return summary.WeeklyReport(entries)
	})
}

func (s *Server) handleMonthlyReport(c *gin.Context) {
	s.periodReport(c, "monthly_report", func(entries []models.LogEntry) summary.Report {
		return summary.MonthlyReport(entries, time.Now().UTC())
	})
}

func (s *Server) periodReport(c *gin.Context, key string, build func([]models.LogEntry) summary.Report) {
	v, err := s.memo.GetOrFill(key, func() (interface{}, error) {
		entries, err := s.store.ReadAll()
		if err != nil {
			return nil, err
		}
		return build(entries), nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v.(summary.Report))
}

func (s *Server) handleDepth(c *gin.Context) {
	// Detached for the same reason as unified: the table is shared across
	// callers, so no single request's cancellation may shape what gets cached.
	v, err := s.memo.GetOrFill("depth_table", func() (interface{}, error) {
		return s.depthTable.Build(context.Background()), nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows := v.([]models.DepthRow)

	grouped := gin.H{"stablecoin": filterRows(rows, models.PairTypeStablecoin), "risk": filterRows(rows, models.PairTypeRisk)}
	c.JSON(http.StatusOK, grouped)
}

func filterRows(rows []models.DepthRow, pairType models.PairType) []models.DepthRow {
	out := make([]models.DepthRow, 0, len(rows))
	for _, r := range rows {
		if r.PairType == pairType {
			out = append(out, r)
		}
	}
	return out
}

func knownExchange(exchange string) bool {
	for _, e := range reader.Exchanges {
		if e == exchange {
			return true
		}
	}
	return false
}
