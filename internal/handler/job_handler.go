package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/service"
)

const defaultListLimit = 50

// JobHandler handles HTTP requests for jobs and drafts
type JobHandler struct {
	jobService *service.JobService
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// CreateJob handles POST /jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req models.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ChatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id is required"})
		return
	}
	if req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	result, err := h.jobService.CreateJob(c.Request.Context(), &req)
	if err != nil {
		h.renderSubmissionError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"job":          result.Job,
		"reused":       result.Reused,
		"from_archive": result.FromArchive,
	})
}

// GetJob handles GET /jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		log.Printf("error getting job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobEvents handles GET /jobs/:id/events
func (h *JobHandler) ListJobEvents(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	events, err := h.jobService.ListJobEvents(c.Request.Context(), id, parseLimit(c))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		log.Printf("error listing job events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list job events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ListJobs handles GET /jobs?status=&limit=
func (h *JobHandler) ListJobs(c *gin.Context) {
	status, err := models.ParseJobStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	jobs, err := h.jobService.ListJobsByStatus(c.Request.Context(), status, parseLimit(c))
	if err != nil {
		log.Printf("error listing jobs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

type createDraftRequest struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// CreateDraft handles POST /drafts
func (h *JobHandler) CreateDraft(c *gin.Context) {
	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ChatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id is required"})
		return
	}

	draft, err := h.jobService.CreateDraft(c.Request.Context(), req.ChatID, req.UserID, req.Text)
	if err != nil {
		h.renderSubmissionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

type confirmDraftRequest struct {
	JobType string `json:"job_type"`
	Quality string `json:"quality"`
}

// ConfirmDraft handles POST /drafts/:id/confirm
func (h *JobHandler) ConfirmDraft(c *gin.Context) {
	var req confirmDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.jobService.ConfirmDraft(c.Request.Context(), c.Param("id"), req.JobType, req.Quality)
	if err != nil {
		if errors.Is(err, service.ErrDraftNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
			return
		}
		h.renderSubmissionError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"job":          result.Job,
		"reused":       result.Reused,
		"from_archive": result.FromArchive,
	})
}

// DiscardDraft handles DELETE /drafts/:id
func (h *JobHandler) DiscardDraft(c *gin.Context) {
	if err := h.jobService.DiscardDraft(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, service.ErrDraftNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
			return
		}
		log.Printf("error discarding draft: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to discard draft"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": service.DraftCancelledText})
}

func (h *JobHandler) renderSubmissionError(c *gin.Context, err error) {
	var reqErr *service.RequestError
	if errors.As(err, &reqErr) {
		status := http.StatusBadRequest
		switch {
		case errors.Is(reqErr.Err, service.ErrRateLimitExceeded):
			status = http.StatusTooManyRequests
		case errors.Is(reqErr.Err, service.ErrMaintenanceMode):
			status = http.StatusServiceUnavailable
		case errors.Is(reqErr.Err, service.ErrUnsupportedSource):
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": reqErr.UserMessage})
		return
	}

	log.Printf("error creating job: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "job creation failed"})
}

func parseJobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return 0, false
	}
	return id, true
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}
