package http

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// handleWebSocket implements spec §6 `WS /api/ws/{channel}`: channel is
// either "owner" or a session id. Origin checking is deliberately
// permissive here — auth/member-directory CRUD is an out-of-scope external
// collaborator per spec §1, the same posture the teacher takes in
// pkg/api/handler_ws.go.
func (s *Server) handleWebSocket(c *gin.Context) {
	channel := c.Param("channel")
	if channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel is required"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	s.hub.Serve(c.Request.Context(), conn, channel)
}
