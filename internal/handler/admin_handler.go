package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
)

// AdminHandler handles chat settings, auth profiles, and operational endpoints
type AdminHandler struct {
	repo    repository.Repository
	metrics *metrics.Metrics
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(repo repository.Repository, metrics *metrics.Metrics) *AdminHandler {
	return &AdminHandler{
		repo:    repo,
		metrics: metrics,
	}
}

// GetChatSettings handles GET /chats/:id/settings
func (h *AdminHandler) GetChatSettings(c *gin.Context) {
	settings, err := h.repo.GetOrCreateChatSettings(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Printf("error loading chat settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updateChatSettingsRequest struct {
	ArchiveMode    *bool   `json:"archive_mode"`
	DefaultJobType *string `json:"default_job_type"`
	DefaultQuality *string `json:"default_quality"`
}

// UpdateChatSettings handles PUT /chats/:id/settings
func (h *AdminHandler) UpdateChatSettings(c *gin.Context) {
	chatID := c.Param("id")

	var req updateChatSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	settings, err := h.repo.GetOrCreateChatSettings(c.Request.Context(), chatID)
	if err != nil {
		log.Printf("error loading chat settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat settings"})
		return
	}

	if req.ArchiveMode != nil {
		if err := h.repo.SetArchiveMode(c.Request.Context(), chatID, *req.ArchiveMode); err != nil {
			log.Printf("error updating archive mode: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update chat settings"})
			return
		}
		settings.ArchiveMode = *req.ArchiveMode
	}

	if req.DefaultJobType != nil || req.DefaultQuality != nil {
		jobType := settings.DefaultJobType
		if req.DefaultJobType != nil {
			jobType = string(models.JobTypeOrVideo(*req.DefaultJobType))
		}
		quality := settings.DefaultQuality
		if req.DefaultQuality != nil {
			quality = *req.DefaultQuality
		}
		if err := h.repo.UpdateChatDefaults(c.Request.Context(), chatID, jobType, quality); err != nil {
			log.Printf("error updating chat defaults: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update chat settings"})
			return
		}
		settings.DefaultJobType = jobType
		settings.DefaultQuality = quality
	}

	c.JSON(http.StatusOK, settings)
}

// GetAuthProfile handles GET /auth-profiles/:id
func (h *AdminHandler) GetAuthProfile(c *gin.Context) {
	profile, err := h.repo.GetProfileByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Printf("error loading auth profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load auth profile"})
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "auth profile not found"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type upsertAuthProfileRequest struct {
	SourceType     string `json:"source_type"`
	CookieFilePath string `json:"cookie_file_path"`
	Status         string `json:"status"`
}

// UpsertAuthProfile handles PUT /auth-profiles/:id
func (h *AdminHandler) UpsertAuthProfile(c *gin.Context) {
	var req upsertAuthProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	source, err := models.ParseSourceType(req.SourceType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source_type"})
		return
	}

	status := models.ProfileActive
	if req.Status != "" {
		switch models.AuthProfileStatus(req.Status) {
		case models.ProfileActive, models.ProfileDegraded, models.ProfileDisabled:
			status = models.AuthProfileStatus(req.Status)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}

	profile := &models.AuthProfile{
		ID:             c.Param("id"),
		SourceType:     source,
		CookieFilePath: req.CookieFilePath,
		Status:         status,
	}
	if err := h.repo.UpsertProfile(c.Request.Context(), profile); err != nil {
		log.Printf("error upserting auth profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save auth profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetMetrics handles GET /metrics
func (h *AdminHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetSnapshot())
}

// Health handles GET /health
func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
