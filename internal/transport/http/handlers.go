package http

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartdoor/orchestrator/internal/models"
)

// ringRequest mirrors spec §6 POST /api/ring.
type ringRequest struct {
	SessionID    string         `json:"session_id"`
	Timestamp    time.Time      `json:"timestamp"`
	DeviceID     string         `json:"device_id" binding:"required"`
	ImageBase64  string         `json:"image_base64"`
	AudioBase64  string         `json:"audio_base64"`
	Metadata     map[string]any `json:"metadata"`
}

func (s *Server) handleRing(c *gin.Context) {
	if !s.deviceLimiters.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "ingress rate limit exceeded"})
		return
	}

	var req ringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := models.RingEvent{
		SessionID: req.SessionID,
		Timestamp: req.Timestamp,
		DeviceID:  req.DeviceID,
		Metadata:  req.Metadata,
	}

	if req.ImageBase64 != "" {
		img, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image_base64"})
			return
		}
		ev.ImageBytes = img
	}
	if req.AudioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audio_base64"})
			return
		}
		ev.AudioBytes = audio
	}

	sessionID, status, err := s.orchestrator.Ring(c.Request.Context(), ev)
	if err != nil {
		// BackPressure with a minted session id still returns a usable
		// sessionID (oldest event dropped, not the new one); an empty id
		// means ingress was refused outright.
		if sessionID == "" {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"sessionId": sessionID, "status": status, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "status": status})
}

func (s *Server) handleSessionStatus(c *gin.Context) {
	id := c.Param("id")
	sess, err := s.store.GetSession(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":   sess.ID,
		"status":      sess.Status,
		"lastUpdated": sess.LastUpdatedAt,
		"riskScore":   sess.RiskScore,
		"finalAction": sess.FinalAction,
	})
}

func (s *Server) handleSessionDetail(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	perception, _ := s.store.GetPerceptionReport(ctx, id)
	transcripts, err := s.store.ListTranscripts(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	actions, err := s.store.ListActions(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":     sess,
		"perception":  perception,
		"transcripts": transcripts,
		"actions":     actions,
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	sessions, err := s.store.ListSessions(c.Request.Context(), limit, "")
	if err != nil {
		s.writeError(c, err)
		return
	}

	type entry struct {
		Session     models.Session            `json:"session"`
		Transcripts []models.TranscriptEntry  `json:"transcripts"`
	}
	out := make([]entry, 0, len(sessions))
	for _, sess := range sessions {
		transcripts, err := s.store.ListTranscripts(c.Request.Context(), sess.ID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		out = append(out, entry{Session: sess, Transcripts: transcripts})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// aiReplyRequest mirrors spec §6 POST /api/ai-reply: a follow-up visitor
// utterance on an existing session, re-run through Intelligence per spec
// §9 Open Question (c) ("re-running the full pipeline ... is unspecified;
// implementations should enqueue and process serially per-session" — this
// endpoint instead runs Intelligence directly against the session's last
// stored PerceptionReport rather than re-entering the full nine-step
// pipeline, since no new ring/snapshot accompanies a follow-up message).
type aiReplyRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (s *Server) handleAIReply(c *gin.Context) {
	var req aiReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	if err := s.store.AppendTranscript(ctx, models.TranscriptEntry{
		SessionID: req.SessionID, Role: models.RoleVisitor, Content: req.Message, Timestamp: time.Now(),
	}); err != nil {
		s.writeError(c, err)
		return
	}

	pr, err := s.store.GetPerceptionReport(ctx, req.SessionID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	pr.Transcript = req.Message

	recent, err := s.store.RecentTranscripts(ctx, req.SessionID, 2)
	if err != nil {
		s.writeError(c, err)
		return
	}

	ir, err := s.reply.Evaluate(ctx, pr, time.Now().Local().Hour(), recent)
	if err != nil {
		s.logger.Warn("ai-reply: intelligence evaluate returned a security-contract substitution",
			"session_id", req.SessionID, "error", err)
	}

	if err := s.store.AppendTranscript(ctx, models.TranscriptEntry{
		SessionID: req.SessionID, Role: models.RoleDoorbell, Content: ir.ReplyText, Timestamp: time.Now(),
	}); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": ir.ReplyText, "intent": ir.Intent, "riskScore": ir.RiskScore})
}

// ownerReplyRequest mirrors spec §6 POST /api/owner-reply (authenticated;
// auth itself is an out-of-scope external collaborator per spec §1).
type ownerReplyRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (s *Server) handleOwnerReply(c *gin.Context) {
	var req ownerReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	entry := models.TranscriptEntry{
		SessionID: req.SessionID,
		Role:      models.RoleDoorbell,
		Content:   req.Message,
		Timestamp: time.Now(),
	}
	if err := s.store.AppendTranscript(ctx, entry); err != nil {
		s.writeError(c, err)
		return
	}

	s.bus.Publish(req.SessionID, ownerReplyEvent(req.SessionID, req.Message))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
