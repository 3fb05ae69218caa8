// Package http implements the spec §6 ingress HTTP API on top of Gin,
// grounded on the teacher's cmd/tarsy/main.go router (gin.Default(),
// gin.H JSON envelopes) and pkg/api/handlers.go handler shape
// (Server struct wrapping collaborators, ShouldBindJSON request structs).
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/smartdoor/orchestrator/internal/apperr"
	"github.com/smartdoor/orchestrator/internal/assets"
	"github.com/smartdoor/orchestrator/internal/eventbus"
	"github.com/smartdoor/orchestrator/internal/models"
	"github.com/smartdoor/orchestrator/internal/perception"
	"github.com/smartdoor/orchestrator/internal/store"
	"github.com/smartdoor/orchestrator/internal/transport/ws"
	"github.com/smartdoor/orchestrator/internal/tts"
)

// ttsAdHocTimeout bounds a standalone /api/tts synthesis call the same way
// the Action Executor bounds its own TTS leg (spec §4.6 "Timeout 10 s").
const ttsAdHocTimeout = 10 * time.Second

// Ringer is the subset of the Orchestrator the HTTP layer calls.
type Ringer interface {
	Ring(ctx context.Context, ev models.RingEvent) (string, models.Status, error)
}

// ReplyEngine is the subset of the Intelligence engine the /api/ai-reply
// follow-up endpoint calls.
type ReplyEngine interface {
	Evaluate(ctx context.Context, pr models.PerceptionReport, localHour int, recent []models.TranscriptEntry) (models.IntelligenceReport, error)
}

// Server wires the Orchestrator, Store, and Event Bus into the spec §6
// external HTTP/WebSocket surface.
type Server struct {
	orchestrator Ringer
	store        *store.Store
	bus          *eventbus.Bus
	reply        ReplyEngine
	hub          *ws.Hub

	// sttProvider and synth back the standalone /api/transcribe and
	// /api/tts endpoints (spec §6); both are optional (nil means the
	// endpoint reports 503), since a deployment may only want the
	// providers wired into the pipeline, not exposed standalone.
	sttProvider perception.Provider
	synth       tts.Synthesizer
	assets      *assets.Store

	// deviceLimiters rate-limits ingress per device so a single noisy
	// doorbell cannot exhaust the shared per-session queue budget for
	// every other device (spec §6 429, DOMAIN STACK: x/time/rate).
	deviceLimiters *rate.Limiter

	logger *slog.Logger
}

// New builds a Server. limiter bounds aggregate ingress rate; per-device
// limiting would need a keyed limiter map, omitted here since the spec's
// back-pressure signal is already per-session (queue-full), not per-device.
func New(orch Ringer, st *store.Store, bus *eventbus.Bus, reply ReplyEngine, hub *ws.Hub, ingressRPS float64) *Server {
	return &Server{
		orchestrator:   orch,
		store:          st,
		bus:            bus,
		reply:          reply,
		hub:            hub,
		deviceLimiters: rate.NewLimiter(rate.Limit(ingressRPS), int(ingressRPS*2)+1),
		logger:         slog.Default().With("component", "http"),
	}
}

// WithProviders attaches the standalone STT/TTS providers and the asset
// store backing /api/transcribe and /api/tts, returning s for chaining.
func (s *Server) WithProviders(sttProvider perception.Provider, synth tts.Synthesizer, assetsStore *assets.Store) *Server {
	s.sttProvider = sttProvider
	s.synth = synth
	s.assets = assetsStore
	return s
}

// Router builds the Gin engine with every spec §6 route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.POST("/api/ring", s.handleRing)
	r.GET("/api/session/:id/status", s.handleSessionStatus)
	r.GET("/api/session/:id/detail", s.handleSessionDetail)
	r.GET("/api/logs", s.handleLogs)
	r.POST("/api/ai-reply", s.handleAIReply)
	r.POST("/api/owner-reply", s.handleOwnerReply)
	r.POST("/api/transcribe", s.handleTranscribe)
	r.POST("/api/tts", s.handleTTS)
	r.GET("/api/ws/:channel", s.handleWebSocket)
	r.GET("/health", s.handleHealth)

	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.DB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// writeError maps an apperr.Kind to the spec's narrow set of visible
// ingress failures (400/429/503); everything else is a 500, since spec §7
// says stage failures are observable only via session status, not via the
// ingress response.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case apperr.Is(err, apperr.KindBackPressure) && errors.Is(err, apperr.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case apperr.Is(err, apperr.KindBackPressure):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case apperr.Is(err, apperr.KindStore) && errors.Is(err, apperr.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("internal error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
