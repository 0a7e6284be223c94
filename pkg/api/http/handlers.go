package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duragraph/duragraph/pkg/domain"
)

// CreateAssistantRequest represents an assistant registration request
type CreateAssistantRequest struct {
	Name    string `json:"name" binding:"required"`
	GraphID string `json:"graph_id" binding:"required"`
}

// SubmitRunRequest represents a run submission request
type SubmitRunRequest struct {
	AssistantID string         `json:"assistant_id" binding:"required"`
	ThreadID    string         `json:"thread_id"`
	Input       map[string]any `json:"input"`
}

// RegisterWorkerRequest represents a worker registration request
type RegisterWorkerRequest struct {
	Name   string   `json:"name" binding:"required"`
	Graphs []string `json:"graphs" binding:"required"`
}

// HeartbeatRequest represents a worker heartbeat
type HeartbeatRequest struct {
	Status string `json:"status"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// handleHealth reports liveness; ready only once all dependencies respond
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true
	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			checks[check.Name] = err.Error()
			healthy = false
		} else {
			checks[check.Name] = "ok"
		}
	}

	status := http.StatusOK
	statusText := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":    statusText,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleCreateAssistant registers an assistant
func (s *Server) handleCreateAssistant(c *gin.Context) {
	var req CreateAssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	assistant, err := s.scheduler.CreateAssistant(c.Request.Context(), req.Name, req.GraphID)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: ErrorDetail{
					Code:    "ASSISTANT_EXISTS",
					Message: err.Error(),
				},
			})
			return
		}
		s.logger.Error("failed to create assistant", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "REGISTRATION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, assistant)
}

// handleListAssistants lists registered assistants
func (s *Server) handleListAssistants(c *gin.Context) {
	assistants, err := s.scheduler.ListAssistants(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list assistants", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORE_ERROR",
				Message: "Failed to list assistants",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assistants": assistants,
		"total":      len(assistants),
	})
}

// handleGetAssistant retrieves one assistant
func (s *Server) handleGetAssistant(c *gin.Context) {
	assistant, err := s.scheduler.AssistantByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Assistant not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, assistant)
}

// handleSubmitRun starts a run
func (s *Server) handleSubmitRun(c *gin.Context) {
	var req SubmitRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	run, err := s.scheduler.SubmitRun(c.Request.Context(), req.AssistantID, req.ThreadID, req.Input)
	if err != nil {
		s.logger.Error("failed to submit run", zap.Error(err))
		code := "SUBMISSION_FAILED"
		if errors.Is(err, domain.ErrNotFound) {
			code = "ASSISTANT_NOT_FOUND"
		}
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    code,
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"run_id":     run.ID,
		"status":     run.Status,
		"thread_id":  run.ThreadID,
		"created_at": run.CreatedAt,
	})
}

// handleGetRun retrieves run status and output
func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.scheduler.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

// handleGetRunEvents retrieves a run's event log
func (s *Server) handleGetRunEvents(c *gin.Context) {
	events, err := s.scheduler.RunEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": c.Param("id"),
		"events": events,
		"total":  len(events),
	})
}

// handleCancelRun cancels a pending or running run
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.scheduler.CancelRun(c.Request.Context(), runID); err != nil {
		status := http.StatusConflict
		code := "CANCELLATION_FAILED"
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusNotFound
			code = "NOT_FOUND"
		}
		c.JSON(status, ErrorResponse{
			Error: ErrorDetail{
				Code:    code,
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":       runID,
		"status":       domain.RunStatusCancelled,
		"cancelled_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRunResult applies a worker-reported run result
func (s *Server) handleRunResult(c *gin.Context) {
	runID := c.Param("id")

	var result domain.RunResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	if err := s.scheduler.HandleResult(c.Request.Context(), runID, result); err != nil {
		status := http.StatusConflict
		code := "RESULT_REJECTED"
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusNotFound
			code = "NOT_FOUND"
		}
		c.JSON(status, ErrorResponse{
			Error: ErrorDetail{
				Code:    code,
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"status": result.Status,
	})
}

// handleListThreadRuns lists runs scoped to a thread
func (s *Server) handleListThreadRuns(c *gin.Context) {
	threadID := c.Param("id")

	runs, err := s.scheduler.ListRunsByThread(c.Request.Context(), threadID)
	if err != nil {
		s.logger.Error("failed to list thread runs",
			zap.String("thread_id", threadID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORE_ERROR",
				Message: "Failed to list runs",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"thread_id": threadID,
		"runs":      runs,
		"total":     len(runs),
	})
}

// handleRegisterWorker registers a worker and hands back its dispatch wiring
func (s *Server) handleRegisterWorker(c *gin.Context) {
	var req RegisterWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	worker, err := s.registry.Register(req.Name, req.Graphs)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "REGISTRATION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"worker_id":  worker.ID,
		"name":       worker.Name,
		"graphs":     worker.Graphs,
		"broker_url": s.brokerURL,
	})
}

// handleListWorkers lists registered workers with aggregate stats
func (s *Server) handleListWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"workers": s.registry.List(),
		"stats":   s.registry.Stats(),
	})
}

// handleWorkerHeartbeat refreshes a worker's liveness
func (s *Server) handleWorkerHeartbeat(c *gin.Context) {
	workerID := c.Param("id")

	// Heartbeat body is optional; a bare POST refreshes liveness only.
	var req HeartbeatRequest
	_ = c.ShouldBindJSON(&req)

	if err := s.registry.Heartbeat(workerID, domain.WorkerStatus(req.Status)); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "WORKER_NOT_FOUND",
				Message: "Worker not found",
			},
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// handleDeregisterWorker removes a worker
func (s *Server) handleDeregisterWorker(c *gin.Context) {
	if err := s.registry.Deregister(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "WORKER_NOT_FOUND",
				Message: "Worker not found",
			},
		})
		return
	}

	c.Status(http.StatusNoContent)
}
