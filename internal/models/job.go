package models

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusQueued    JobStatus = "QUEUED"
	StatusRunning   JobStatus = "RUNNING"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
)

// ParseJobStatus converts a raw string into a JobStatus
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case StatusPending, StatusQueued, StatusRunning, StatusCompleted, StatusFailed:
		return JobStatus(s), nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTerminal reports whether the status has no outgoing transitions
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobType represents the kind of media requested
type JobType string

const (
	TypeVideo JobType = "VIDEO"
	TypeAudio JobType = "AUDIO"
)

// ParseJobType converts a raw string into a JobType
func ParseJobType(s string) (JobType, error) {
	switch JobType(s) {
	case TypeVideo, TypeAudio:
		return JobType(s), nil
	}
	return "", fmt.Errorf("unknown job type %q", s)
}

// JobTypeOrVideo parses a raw string, falling back to VIDEO on unknown or
// empty values. Chat-preference resolution and job execution share this
// fallback so both sides of the pipeline agree.
func JobTypeOrVideo(s string) JobType {
	if t, err := ParseJobType(s); err == nil {
		return t
	}
	return TypeVideo
}

// SourceType identifies a supported content source
type SourceType string

const (
	SourceYouTube     SourceType = "YOUTUBE"
	SourceFacebook    SourceType = "FACEBOOK"
	SourceArchive     SourceType = "ARCHIVE"
	SourceIslamicSite SourceType = "ISLAMIC_SITE"
	SourceGeneric     SourceType = "GENERIC"
)

// ParseSourceType converts a raw string into a SourceType
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case SourceYouTube, SourceFacebook, SourceArchive, SourceIslamicSite, SourceGeneric:
		return SourceType(s), nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// SourceTypeOrGeneric parses a raw string, falling back to GENERIC on unknown values
func SourceTypeOrGeneric(s string) SourceType {
	if t, err := ParseSourceType(s); err == nil {
		return t
	}
	return SourceGeneric
}

// ErrorType classifies why a job failed
type ErrorType string

const (
	ErrNetwork                 ErrorType = "NETWORK_ERROR"
	ErrHTTP                    ErrorType = "HTTP_ERROR"
	ErrAuth                    ErrorType = "AUTH_ERROR"
	ErrRateLimit               ErrorType = "RATE_LIMIT"
	ErrGeoBlock                ErrorType = "GEO_BLOCK"
	ErrSizeLimit               ErrorType = "SIZE_LIMIT"
	ErrUnsupportedSource       ErrorType = "UNSUPPORTED_SOURCE"
	ErrProtectedContent        ErrorType = "PROTECTED_CONTENT"
	ErrExtractor               ErrorType = "EXTRACTOR_ERROR"
	ErrExtractorUpdateRequired ErrorType = "EXTRACTOR_UPDATE_REQUIRED"
	ErrInternal                ErrorType = "INTERNAL_ERROR"
	ErrUnknown                 ErrorType = "UNKNOWN"
)

// AuthProfileStatus represents the health of an auth profile
type AuthProfileStatus string

const (
	ProfileActive   AuthProfileStatus = "ACTIVE"
	ProfileDegraded AuthProfileStatus = "DEGRADED"
	ProfileDisabled AuthProfileStatus = "DISABLED"
)

// Job represents one tracked media-retrieval request
type Job struct {
	ID                int64      `json:"id"`
	JobKey            string     `json:"job_key"`
	URL               string     `json:"url"`
	SourceType        SourceType `json:"source_type"`
	JobType           JobType    `json:"job_type"`
	RequestedQuality  string     `json:"requested_quality,omitempty"`
	Status            JobStatus  `json:"status"`
	ErrorType         ErrorType  `json:"error_type,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	AuthProfileID     string     `json:"auth_profile_id,omitempty"`
	ChatID            string     `json:"chat_id,omitempty"`
	UserID            string     `json:"user_id,omitempty"`
	FinalTitle        string     `json:"final_title,omitempty"`
	FilePath          string     `json:"file_path,omitempty"`
	ThumbnailPath     string     `json:"thumbnail_path,omitempty"`
	FileSize          int64      `json:"file_size,omitempty"`
	ProgressPercent   float64    `json:"progress_percent"`
	DownloadedBytes   int64      `json:"downloaded_bytes"`
	TotalBytes        int64      `json:"total_bytes"`
	SpeedBPS          float64    `json:"speed_bps"`
	LastProgressAt    *time.Time `json:"last_progress_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	MessageRef        string     `json:"message_ref,omitempty"`
	DeliveryAttempts  int        `json:"delivery_attempts"`
	DeliveryLastError string     `json:"delivery_last_error,omitempty"`
	FailureNotifiedAt *time.Time `json:"failure_notified_at,omitempty"`
	IsArchived        bool       `json:"is_archived"`
	ArchivedAt        *time.Time `json:"archived_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Event kinds recorded on the job timeline.
const (
	EventJobCreated     = "JOB_CREATED"
	EventJobReused      = "JOB_REUSED"
	EventStatusChanged  = "STATUS_CHANGED"
	EventArchived       = "ARCHIVED"
	EventDelivered      = "DELIVERED"
	EventDeliveryFailed = "DELIVERY_FAILED"
	EventRequeued       = "REQUEUED"
)

// JobEvent is an append-only timeline entry owned by a job
type JobEvent struct {
	ID        int64          `json:"id"`
	JobID     int64          `json:"job_id"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// JobDraft is an ephemeral pre-job record awaiting type/quality confirmation
type JobDraft struct {
	ID             string     `json:"id"`
	ChatID         string     `json:"chat_id"`
	UserID         string     `json:"user_id,omitempty"`
	URL            string     `json:"url"`
	SourceType     SourceType `json:"source_type"`
	URLDomain      string     `json:"url_domain"`
	SuggestedTitle string     `json:"suggested_title,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// AuthProfile is a named credential bundle for a content source
type AuthProfile struct {
	ID                 string            `json:"id"`
	SourceType         SourceType        `json:"source_type"`
	CookieFilePath     string            `json:"cookie_file_path,omitempty"`
	Status             AuthProfileStatus `json:"status"`
	FailureCountRecent int               `json:"failure_count_recent"`
	LastSuccessAt      *time.Time        `json:"last_success_at,omitempty"`
	LastFailureAt      *time.Time        `json:"last_failure_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ChatSettings holds per-chat preferences and defaults
type ChatSettings struct {
	ChatID         string    `json:"chat_id"`
	ArchiveMode    bool      `json:"archive_mode"`
	DefaultJobType string    `json:"default_job_type,omitempty"`
	DefaultQuality string    `json:"default_quality,omitempty"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateJobRequest represents an incoming media-retrieval request
type CreateJobRequest struct {
	ChatID  string `json:"chat_id"`
	UserID  string `json:"user_id,omitempty"`
	Text    string `json:"text"`
	JobType string `json:"job_type,omitempty"`
	Quality string `json:"quality,omitempty"`
}
