package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"main/internal/audit"
	"main/internal/engine"
	"main/internal/ingest"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/gin-gonic/gin"
	"github.com/yanun0323/logs"
)

// Config wires the HTTP delivery surface.
type Config struct {
	Ingestor *ingest.Ingestor
	Engine   *engine.Engine
	Hub      *notify.Hub
	Metrics  *obs.Metrics
	Audit    *audit.Writer
}

// Server is a thin transport layer: it maps HTTP requests onto the
// ingest and engine operations and their errors onto status codes.
// All domain rules live below it.
type Server struct {
	cfg        Config
	router     *gin.Engine
	requestIDs *obs.RequestIDs
}

// NewServer builds the router. Call Router().Run or mount it yourself.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{cfg: cfg, router: router, requestIDs: obs.NewRequestIDs(0)}
	router.Use(s.accessLog)

	router.POST("/webhook/alert", s.handleAlert)
	router.POST("/tick", s.handleTick)
	router.GET("/ws", s.handleWS)
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", s.handleMetrics)
	router.GET("/positions", s.handlePositions)
	router.GET("/positions/:symbol", s.handlePosition)
	router.POST("/positions/:symbol/stop", s.handleMoveStop)

	return s
}

// Router exposes the underlying gin engine for http.Server wiring.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// accessLog tags every request with a correlation ID and records its
// outcome. The websocket endpoint is skipped since it holds the
// connection open.
func (s *Server) accessLog(c *gin.Context) {
	if c.FullPath() == "/ws" {
		c.Next()
		return
	}

	id := s.requestIDs.Next()
	c.Header("X-Request-ID", id)
	started := time.Now()
	c.Next()
	logs.Debugf("%s %s %s %d %s", id, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(started))
}

// handleAlert runs the full alert pipeline: ingest, status advance,
// engine transition, terminal status. A duplicate delivery is
// acknowledged with 200 and no side effects.
func (s *Server) handleAlert(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil || len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}

	record, err := s.cfg.Ingestor.Ingest(c.Request.Context(), payload)
	switch {
	case err == nil:
	case errors.Is(err, exception.ErrDuplicateAlert):
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	case exception.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	default:
		logs.Errorf("ingest alert, err: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persistence failure"})
		return
	}

	if err := s.cfg.Ingestor.MarkProcessing(c.Request.Context(), record.ID); err != nil {
		logs.Errorf("advance alert %s to processing, err: %v", record.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persistence failure", "alert_id": record.ID})
		return
	}

	pos, err := s.cfg.Engine.OnAlert(c.Request.Context(), record)
	if err != nil {
		s.finishFailedAlert(c, record.ID, err)
		return
	}

	if err := s.cfg.Ingestor.MarkExecuted(c.Request.Context(), record.ID); err != nil {
		logs.Errorf("advance alert %s to executed, err: %v", record.ID, err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "executed", "alert_id": record.ID, "position": pos})
}

// finishFailedAlert converts an engine rejection into a response and
// the matching terminal alert status.
func (s *Server) finishFailedAlert(c *gin.Context, alertID string, err error) {
	switch {
	case errors.Is(err, exception.ErrPositionNotFound):
		if markErr := s.cfg.Ingestor.MarkCancelled(c.Request.Context(), alertID); markErr != nil {
			logs.Errorf("advance alert %s to cancelled, err: %v", alertID, markErr)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "alert_id": alertID})
	case errors.Is(err, exception.ErrTerminalState),
		errors.Is(err, exception.ErrPositionExists),
		errors.Is(err, exception.ErrPositionSideClose):
		if markErr := s.cfg.Ingestor.MarkFailed(c.Request.Context(), alertID, err.Error()); markErr != nil {
			logs.Errorf("advance alert %s to failed, err: %v", alertID, markErr)
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "alert_id": alertID})
	default:
		logs.Errorf("apply alert %s, err: %v", alertID, err)
		if markErr := s.cfg.Ingestor.MarkFailed(c.Request.Context(), alertID, err.Error()); markErr != nil {
			logs.Errorf("advance alert %s to failed, err: %v", alertID, markErr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persistence failure", "alert_id": alertID})
	}
}

type tickRequest struct {
	Symbol string  `json:"symbol" binding:"required"`
	Price  float64 `json:"price" binding:"required,gt=0"`
}

func (s *Server) handleTick(c *gin.Context) {
	var req tickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tick := schema.Tick{Symbol: req.Symbol, Price: req.Price, At: time.Now().UTC()}
	if s.cfg.Audit != nil {
		if raw, err := json.Marshal(tick); err == nil {
			if err := s.cfg.Audit.TryAppend(audit.EntryTick, raw); err != nil {
				logs.Warnf("audit append tick, err: %v", err)
			}
		}
	}

	pos, err := s.cfg.Engine.OnTick(c.Request.Context(), tick)
	if err != nil {
		logs.Errorf("apply tick %s, err: %v", tick.Symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persistence failure"})
		return
	}
	if pos == nil {
		c.JSON(http.StatusOK, gin.H{"status": "noop"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied", "position": pos})
}

func (s *Server) handleWS(c *gin.Context) {
	s.cfg.Hub.Handle(c.Writer, c.Request)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": s.cfg.Hub.Len()})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Metrics.Snapshot())
}

type moveStopRequest struct {
	Stop float64 `json:"stop" binding:"required,gt=0"`
}

// handleMoveStop tightens a position's protective stop. Moves against
// the holder are rejected.
func (s *Server) handleMoveStop(c *gin.Context) {
	var req moveStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	symbol := c.Param("symbol")
	err := s.cfg.Engine.MoveStop(c.Request.Context(), symbol, req.Stop)
	switch {
	case err == nil:
	case errors.Is(err, exception.ErrPositionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, exception.ErrTerminalState),
		errors.Is(err, exception.ErrStopNotFavorable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	default:
		logs.Errorf("move stop %s, err: %v", symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persistence failure"})
		return
	}

	pos, _ := s.cfg.Engine.Position(symbol)
	c.JSON(http.StatusOK, gin.H{"status": "applied", "position": pos})
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.cfg.Engine.OpenPositions()})
}

func (s *Server) handlePosition(c *gin.Context) {
	pos, ok := s.cfg.Engine.Position(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no position"})
		return
	}
	c.JSON(http.StatusOK, pos)
}
