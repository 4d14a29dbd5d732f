package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/salestream-lab/salestream/internal/core/errors"
)

// HTTPEdge is the producer boundary for deployments without an external
// broker: clients POST raw transaction JSON, the edge enqueues it, and the
// ingestion engine consumes it like any other stream message. Validation
// happens in the engine, not here — a malformed body still gets a 202 and is
// dead-lettered downstream, exactly as a broker delivery would be.
type HTTPEdge struct {
	queue            *Queue
	deadLetters      *Queue // nil when dead-lettering is log-only
	maxBodySizeBytes int64
}

// NewHTTPEdge creates the edge over the given queue. deadLetters may be nil.
func NewHTTPEdge(q *Queue, deadLetters *Queue, maxBodySizeMB int) *HTTPEdge {
	if q == nil {
		panic("ingest: queue must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &HTTPEdge{
		queue:            q,
		deadLetters:      deadLetters,
		maxBodySizeBytes: int64(maxBodySizeMB) * 1024 * 1024,
	}
}

// RegisterRoutes registers the producer routes.
func (h *HTTPEdge) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/transactions", h.EnqueueHandler)
	if h.deadLetters != nil {
		r.GET("/v1/dead-letters", h.DrainDeadLettersHandler)
	}
}

// EnqueueHandler handles HTTP POST requests feeding the event stream.
func (h *HTTPEdge) EnqueueHandler(c *gin.Context) {
	// Enforce maximum body size to prevent OOM from oversized requests.
	limitedBody := io.LimitReader(c.Request.Body, h.maxBodySizeBytes+1)

	payload, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to read request body",
		})
		return
	}

	if int64(len(payload)) > h.maxBodySizeBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(payload), "max", h.maxBodySizeBytes)
		c.JSON(http.StatusRequestEntityTooLarge, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Request body exceeds maximum allowed size",
			Details: map[string]interface{}{
				"max_size_mb": h.maxBodySizeBytes / (1024 * 1024),
			},
		})
		return
	}

	// Cheap syntax check so obviously broken clients get immediate feedback
	// instead of a silent dead-letter.
	if !json.Valid(payload) {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid JSON body",
		})
		return
	}

	if err := h.queue.Publish(payload); err != nil {
		if errors.Is(err, ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
				ErrorType: httperr.HttpInternalError,
				Message:   "Ingestion queue is full, retry later",
			})
			return
		}
		slog.Error("Failed to enqueue payload", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to enqueue payload",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// DrainDeadLettersHandler handles GET /v1/dead-letters?limit=
// Returns and removes up to limit envelopes from the dead-letter queue.
func (h *HTTPEdge) DrainDeadLettersHandler(c *gin.Context) {
	var q struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}

	envelopes := make([]DeadLetterEnvelope, 0)
	for len(envelopes) < q.Limit {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Millisecond)
		msg, err := h.deadLetters.Next(ctx)
		cancel()
		if err != nil {
			break // queue drained or closed
		}
		var envelope DeadLetterEnvelope
		if err := json.Unmarshal(msg.Payload(), &envelope); err != nil {
			slog.Error("Failed to decode dead-letter envelope", "error", err)
			msg.Ack()
			continue
		}
		msg.Ack()
		envelopes = append(envelopes, envelope)
	}

	c.JSON(http.StatusOK, gin.H{
		"count":        len(envelopes),
		"dead_letters": envelopes,
	})
}
