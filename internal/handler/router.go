package handler

import "github.com/gin-gonic/gin"

// NewRouter assembles the HTTP API
func NewRouter(jobs *JobHandler, admin *AdminHandler) *gin.Engine {
	r := gin.Default()

	r.GET("/health", admin.Health)
	r.GET("/metrics", admin.GetMetrics)

	r.POST("/jobs", jobs.CreateJob)
	r.GET("/jobs", jobs.ListJobs)
	r.GET("/jobs/:id", jobs.GetJob)
	r.GET("/jobs/:id/events", jobs.ListJobEvents)

	r.POST("/drafts", jobs.CreateDraft)
	r.POST("/drafts/:id/confirm", jobs.ConfirmDraft)
	r.DELETE("/drafts/:id", jobs.DiscardDraft)

	r.GET("/chats/:id/settings", admin.GetChatSettings)
	r.PUT("/chats/:id/settings", admin.UpdateChatSettings)

	r.GET("/auth-profiles/:id", admin.GetAuthProfile)
	r.PUT("/auth-profiles/:id", admin.UpsertAuthProfile)

	return r
}
