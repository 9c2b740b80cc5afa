package onboarding

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/shared/server/respond"
	"tailor-backend/internal/shared/util"
)

// CookieName addresses the onboarding session on the client.
const CookieName = "tb_session"

// Handler wires HTTP handlers to the onboarding service. Session routes are
// anonymous; possession of the session cookie is the only credential.
type Handler struct {
	Svc          *Service
	SecureCookie bool
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{Svc: svc, SecureCookie: secureCookie}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.startSession)
	rg.GET("/sessions/:id", h.sessionStatus)
	rg.POST("/sessions/:id/draft", h.saveDraft)
	rg.POST("/sessions/:id/resume", h.uploadResume)
	rg.DELETE("/sessions/:id/resume", h.deleteResume)
}

func (h *Handler) startSession(c *gin.Context) {
	presented, _ := c.Cookie(CookieName)
	ipHash := util.HashClientIP(c.ClientIP())

	session, created, err := h.Svc.Start(c.Request.Context(), presented, ipHash, c.Request.UserAgent())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start session", nil)
		return
	}
	c.Set("sessionId", session.ID)

	c.SetSameSite(http.SameSiteLaxMode)
	maxAge := int(time.Until(session.ExpiresAt) / time.Second)
	c.SetCookie(CookieName, session.ID, maxAge, "/", "", h.SecureCookie, true)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond.JSON(c, status, gin.H{"sessionId": session.ID})
}

func (h *Handler) sessionStatus(c *gin.Context) {
	sessionID := c.Param("id")
	c.Set("sessionId", sessionID)

	status, err := h.Svc.Status(c.Request.Context(), sessionID)
	if err != nil {
		h.sessionError(c, err, "failed to fetch session")
		return
	}
	respond.JSON(c, http.StatusOK, status)
}

type draftRequest struct {
	JDText                 string `json:"jdText"`
	JDSourceURL            string `json:"jdSourceUrl"`
	JDTitle                string `json:"jdTitle"`
	JDCompany              string `json:"jdCompany"`
	ResumeBucket           string `json:"resumeBucket"`
	ResumeObjectPath       string `json:"resumeObjectPath"`
	ResumeOriginalFilename string `json:"resumeOriginalFilename"`
	ResumeMimeType         string `json:"resumeMimeType"`
	ResumeSizeBytes        int64  `json:"resumeSizeBytes"`
}

func (h *Handler) saveDraft(c *gin.Context) {
	sessionID := c.Param("id")
	c.Set("sessionId", sessionID)
	if !h.cookieMatches(c, sessionID) {
		respond.Error(c, http.StatusBadRequest, "session_not_found", "session not found", nil)
		return
	}

	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	draft, err := h.Svc.SaveDraft(c.Request.Context(), sessionID, DraftInput{
		JDText:                 req.JDText,
		JDSourceURL:            req.JDSourceURL,
		JDTitle:                req.JDTitle,
		JDCompany:              req.JDCompany,
		ResumeBucket:           req.ResumeBucket,
		ResumeObjectPath:       req.ResumeObjectPath,
		ResumeOriginalFilename: req.ResumeOriginalFilename,
		ResumeMimeType:         req.ResumeMimeType,
		ResumeSizeBytes:        req.ResumeSizeBytes,
	})
	if err != nil {
		h.sessionError(c, err, "failed to save draft")
		return
	}

	respond.JSON(c, http.StatusCreated, gin.H{"draftId": draft.ID})
}

func (h *Handler) uploadResume(c *gin.Context) {
	sessionID := c.Param("id")
	c.Set("sessionId", sessionID)
	if !h.cookieMatches(c, sessionID) {
		respond.Error(c, http.StatusBadRequest, "session_not_found", "session not found", nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "failed to read file", nil)
		return
	}
	defer f.Close()

	ref, err := h.Svc.SaveResume(c.Request.Context(), sessionID, fileHeader.Filename, f)
	if err != nil {
		h.sessionError(c, err, "failed to store resume")
		return
	}

	respond.JSON(c, http.StatusCreated, ref)
}

type deleteResumeRequest struct {
	Bucket     string `json:"bucket"`
	ObjectPath string `json:"objectPath"`
}

func (h *Handler) deleteResume(c *gin.Context) {
	sessionID := c.Param("id")
	c.Set("sessionId", sessionID)
	if !h.cookieMatches(c, sessionID) {
		respond.Error(c, http.StatusBadRequest, "session_not_found", "session not found", nil)
		return
	}

	var req deleteResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	if err := h.Svc.DeleteResume(c.Request.Context(), sessionID, req.Bucket, req.ObjectPath); err != nil {
		h.sessionError(c, err, "failed to delete resume")
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{"success": true})
}

func (h *Handler) cookieMatches(c *gin.Context, sessionID string) bool {
	cookie, err := c.Cookie(CookieName)
	return err == nil && cookie == sessionID
}

func (h *Handler) sessionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		respond.Error(c, http.StatusBadRequest, "session_not_found", "session not found", nil)
	case errors.Is(err, ErrSessionInactive):
		respond.Error(c, http.StatusBadRequest, "session_inactive", "session is no longer editable", nil)
	case errors.Is(err, ErrSessionExpired):
		respond.Error(c, http.StatusBadRequest, "session_expired", "session has expired", nil)
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
