package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/synapse/internal/memory"
)

// QueueInspector reports the number of pending items on a named queue.
// Satisfied by the queue transport.
type QueueInspector interface {
	Depth(ctx context.Context, queue string) (uint64, error)
}

// Server exposes the observability surface. It reads queue depths and the
// system event log; it never writes to the pipeline.
type Server struct {
	Store  *memory.Store
	Queues QueueInspector
	Names  []string
}

func NewServer(store *memory.Store, queues QueueInspector, queueNames []string) *Server {
	return &Server{Store: store, Queues: queues, Names: queueNames}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Healthz)
	r.GET("/queues", s.QueueDepths)
	r.GET("/events/recent", s.RecentEvents)

	return r
}

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) QueueDepths(c *gin.Context) {
	depths := make(map[string]uint64, len(s.Names))
	for _, name := range s.Names {
		n, err := s.Queues.Depth(c.Request.Context(), name)
		if err != nil {
			slog.Warn("queue depth lookup failed", "queue", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("depth lookup failed for %s", name)})
			return
		}
		depths[name] = n
	}
	c.JSON(http.StatusOK, gin.H{"queues": depths})
}

func (s *Server) RecentEvents(c *gin.Context) {
	events, err := s.Store.RecentSystemEvents(c.Request.Context(), 20)
	if err != nil {
		slog.Error("failed to read recent system events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
