// Package handlers exposes the HTTP surface: the public submission endpoint
// and the auth-gated admin API.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"road-report-service/config"
	"road-report-service/database"
	"road-report-service/line"
	"road-report-service/models"
	"road-report-service/services"
)

// Messages surfaced to citizens on failed submissions.
const (
	msgProcessingPrefix = "データの処理に失敗しました: "
	msgAuthFailed       = "ユーザー認証に失敗しました。"
	msgPersistFailed    = "データの保存に失敗しました。"
	msgBadRequest       = "無効なリクエストです。"
)

// Handlers holds the dependencies for HTTP handlers.
type Handlers struct {
	cfg     *config.Config
	reports *services.ReportService
}

// NewHandlers creates a new handlers instance.
func NewHandlers(cfg *config.Config, reports *services.ReportService) *Handlers {
	return &Handlers{cfg: cfg, reports: reports}
}

// SubmitReport handles the citizen submission endpoint. It is registered for
// every method so non-POST requests get an explicit 405.
func (h *Handlers) SubmitReport(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{
			Status:  "error",
			Message: "Method Not Allowed",
		})
		return
	}

	var req models.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Unparseable submission body: %v", err)
		submissionError(c, msgBadRequest)
		return
	}

	resp, err := h.reports.ProcessSubmission(c.Request.Context(), &req)
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			submissionError(c, verr.Reason)
		case errors.Is(err, line.ErrAuthentication):
			submissionError(c, msgAuthFailed)
		default:
			submissionError(c, msgPersistFailed)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Failed submissions answer 500 with a status/message pair the client
// surfaces verbatim. The same shape covers validation, auth and storage
// failures; only the message differs.
func submissionError(c *gin.Context, reason string) {
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Status:  "error",
		Message: msgProcessingPrefix + reason,
	})
}

// GetConfig hands the LIFF app its runtime configuration.
func (h *Handlers) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, models.ConfigResponse{LiffID: h.cfg.LiffID})
}

// HealthCheck handles the health check endpoint.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListReports returns recent reports plus their map viewport for the
// dashboard.
func (h *Handlers) ListReports(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	resp, err := h.reports.ListReports(c.Request.Context(), limit)
	if err != nil {
		log.Errorf("Failed to list reports: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateReportStatus flips a report between 未処理 and 処理済.
func (h *Handlers) UpdateReportStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.reports.UpdateStatus(c.Request.Context(), req.ID, req.Status); err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
			return
		}
		log.Errorf("Failed to update report status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": req.ID, "status": req.Status})
}

// ListRecipients returns the registered notification recipients.
func (h *Handlers) ListRecipients(c *gin.Context) {
	recipients, err := h.reports.ListRecipients(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list recipients: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recipients"})
		return
	}
	if recipients == nil {
		recipients = []models.Recipient{}
	}
	c.JSON(http.StatusOK, gin.H{"recipients": recipients})
}

// AddRecipient registers a notification recipient.
func (h *Handlers) AddRecipient(c *gin.Context) {
	var req models.AddRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	recipient, err := h.reports.AddRecipient(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
			return
		}
		log.Errorf("Failed to add recipient: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add recipient"})
		return
	}

	c.JSON(http.StatusCreated, recipient)
}

// DeleteRecipient removes a recipient registration.
func (h *Handlers) DeleteRecipient(c *gin.Context) {
	if err := h.reports.DeleteRecipient(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
			return
		}
		log.Errorf("Failed to delete recipient: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete recipient"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// SetupRoutes registers the full route table on the given router.
func (h *Handlers) SetupRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.Any("/report", h.SubmitReport)
	router.GET("/api/config", h.GetConfig)
	router.GET("/health", h.HealthCheck)

	admin := router.Group("/api", authMiddleware)
	{
		admin.GET("/reports", h.ListReports)
		admin.POST("/reports/status", h.UpdateReportStatus)
		admin.GET("/recipients", h.ListRecipients)
		admin.POST("/recipients", h.AddRecipient)
		admin.DELETE("/recipients/:id", h.DeleteRecipient)
	}
}
