package http

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smartdoor/orchestrator/internal/assets"
	"github.com/smartdoor/orchestrator/internal/perception"
	"github.com/smartdoor/orchestrator/internal/tts"
)

// transcribeRequest mirrors spec §6 POST /api/transcribe: raw audio bytes
// in, transcript text out.
type transcribeRequest struct {
	AudioBase64 string `json:"audio_base64" binding:"required"`
}

func (s *Server) handleTranscribe(c *gin.Context) {
	if s.sttProvider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no STT provider configured"})
		return
	}

	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audio_base64"})
		return
	}

	path, err := s.assets.WriteTempAudio(uuid.New().String(), "transcribe", audio)
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), perception.Budget)
	defer cancel()
	report, err := s.sttProvider.Analyze(ctx, perception.Input{AudioPath: path})
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"transcript": "", "confidence": 0})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transcript": report.Transcript, "confidence": report.STTConfidence})
}

// ttsRequest mirrors spec §6 POST /api/tts: text in, a path to the
// synthesized audio out.
type ttsRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleTTS(c *gin.Context) {
	if s.synth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no TTS synthesizer configured"})
		return
	}

	var req ttsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filename := uuid.New().String() + ".wav"
	path, err := s.assets.Path(assets.SubdirTTS, filename)
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ttsAdHocTimeout)
	defer cancel()

	voice := tts.VoiceFor(req.Text)
	if err := s.synth.Synthesize(ctx, req.Text, voice, path); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audioPath": path, "voice": string(voice)})
}
