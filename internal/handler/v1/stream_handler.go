package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clavis-health/clavis/internal/access"
	"github.com/clavis-health/clavis/internal/broadcast"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StreamHandler bridges live subscriptions onto server-sent events. The hub
// treats each stream as an opaque connection; everything transport-specific
// stays here.
type StreamHandler struct {
	hub *broadcast.Hub
	log *zap.Logger
}

func NewStreamHandler(hub *broadcast.Hub, log *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, log: log}
}

// sseConn writes hub events as SSE frames. Only the subscriber's writer
// goroutine calls Send, so no extra locking is needed.
type sseConn struct {
	w gin.ResponseWriter
}

func (s *sseConn) Send(ev broadcast.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

func (h *StreamHandler) PatientStream(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	h.serve(c, broadcast.KeyPatient, id.String())
}

func (h *StreamHandler) DepartmentStream(c *gin.Context) {
	department := c.Param("name")
	claims := callerClaims(c)
	if err := access.AuthorizeQueue(claims.Role, department); err != nil {
		respondServiceError(c, err)
		return
	}
	h.serve(c, broadcast.KeyDepartment, department)
}

func (h *StreamHandler) StatusStream(c *gin.Context) {
	h.serve(c, broadcast.KeyGlobal, "")
}

func (h *StreamHandler) serve(c *gin.Context, kind broadcast.KeyKind, key string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	sub := h.hub.Subscribe(kind, key, &sseConn{w: c.Writer})
	defer sub.Close()

	h.log.Debug("stream opened",
		zap.String("kind", string(kind)),
		zap.String("key", key),
	)

	<-c.Request.Context().Done()
}
