package jobs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/credits"
	"tailor-backend/internal/shared/server/middleware"
	"tailor-backend/internal/shared/server/respond"
)

// Handler exposes generation job endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs", h.createJob)
	rg.GET("/jobs", h.listJobs)
	rg.GET("/jobs/:id", h.getJob)
	rg.POST("/jobs/:id/cancel", h.cancelJob)
}

type createJobRequest struct {
	Mode      string `json:"mode"`
	JDText    string `json:"jdText"`
	ResumeRef string `json:"resumeReference"`
}

func (h *Handler) createJob(c *gin.Context) {
	accountID := middleware.UserIDFromContext(c)

	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	job, err := h.Svc.Create(ctx, accountID, CreateInput{
		Mode:      req.Mode,
		JDText:    req.JDText,
		ResumeRef: req.ResumeRef,
	})
	if err != nil {
		switch {
		case errors.Is(err, credits.ErrInsufficientCredits):
			respond.Error(c, http.StatusPaymentRequired, "NO_CREDITS", "not enough credits to start a generation", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create job", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, job)
}

func (h *Handler) getJob(c *gin.Context) {
	accountID := middleware.UserIDFromContext(c)

	job, err := h.Svc.Get(c.Request.Context(), c.Param("id"), accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		return
	}

	respond.JSON(c, http.StatusOK, job)
}

func (h *Handler) listJobs(c *gin.Context) {
	accountID := middleware.UserIDFromContext(c)

	limit := 50
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	list, err := h.Svc.List(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list jobs", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{"jobs": list})
}

func (h *Handler) cancelJob(c *gin.Context) {
	accountID := middleware.UserIDFromContext(c)

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	job, err := h.Svc.Cancel(ctx, c.Param("id"), accountID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		case errors.Is(err, ErrInvalidTransition):
			respond.Error(c, http.StatusConflict, "already_finished", "job already reached a final state", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to cancel job", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, job)
}
