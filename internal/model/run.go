package model

import "time"

// RunStatus is the state of one pipeline attempt
type RunStatus string

const (
	RunStatusPending          RunStatus = "PENDING"
	RunStatusContentGenerated RunStatus = "CONTENT_GENERATED"
	RunStatusMediaUploaded    RunStatus = "MEDIA_UPLOADED"
	RunStatusPublished        RunStatus = "PUBLISHED"
	RunStatusFailed           RunStatus = "FAILED"
)

// IsTerminal reports whether no further stage transition is expected
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusPublished || s == RunStatusFailed
}

// Stage names a pipeline step
type Stage string

const (
	StageGenerate Stage = "generate"
	StageDedup    Stage = "dedup"
	StageRender   Stage = "render"
	StageUpload   Stage = "upload"
	StagePublish  Stage = "publish"
)

// RunLogEntry records one pipeline attempt for one item.
// Artifact fields are only ever filled in; a later failure keeps them.
type RunLogEntry struct {
	ID            string     `json:"id"`
	RunID         string     `json:"runId"`
	ModuleID      string     `json:"moduleId"`
	ItemID        string     `json:"itemId"`
	UserID        string     `json:"userId"`
	AccountRef    string     `json:"accountRef"`
	DisplayName   string     `json:"displayName,omitempty"`
	Status        RunStatus  `json:"status"`
	FailedStage   Stage      `json:"failedStage,omitempty"`
	GeneratedText string     `json:"generatedText,omitempty"`
	VisualPrompt  string     `json:"visualPrompt,omitempty"`
	MediaURL      string     `json:"mediaUrl,omitempty"`
	PublishID     string     `json:"publishId,omitempty"`
	Error         string     `json:"error,omitempty"`
	Regenerated   bool       `json:"regenerated"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// Scope returns the history scope of the entry
func (e *RunLogEntry) Scope() Scope {
	return Scope{UserID: e.UserID, AccountRef: e.AccountRef}
}

// ItemResult is what one executor run hands back to the dispatcher
type ItemResult struct {
	ModuleID string        `json:"moduleId"`
	ItemID   string        `json:"itemId"`
	UserID   string        `json:"userId"`
	Status   RunStatus     `json:"status"`
	Entry    *RunLogEntry  `json:"entry"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the item reached PUBLISHED
func (r ItemResult) Succeeded() bool {
	return r.Status == RunStatusPublished
}

// ModuleError records an isolated module query failure
type ModuleError struct {
	ModuleID string `json:"moduleId"`
	Error    string `json:"error"`
}

// PipelineRun aggregates one dispatch tick
type PipelineRun struct {
	RunID           string        `json:"runId"`
	Bucket          string        `json:"bucket"`
	StartTime       time.Time     `json:"startTime"`
	EndTime         time.Time     `json:"endTime"`
	TotalScheduled  int           `json:"totalScheduled"`
	TotalSuccessful int           `json:"totalSuccessful"`
	TotalFailed     int           `json:"totalFailed"`
	TotalAbandoned  int           `json:"totalAbandoned"`
	ModuleErrors    []ModuleError `json:"moduleErrors,omitempty"`
}

// SuccessRate returns successful/scheduled in [0,1]; 0 when nothing was scheduled
func (r *PipelineRun) SuccessRate() float64 {
	if r.TotalScheduled == 0 {
		return 0
	}
	return float64(r.TotalSuccessful) / float64(r.TotalScheduled)
}

// RunSummary is the aggregate computed from persisted log entries
type RunSummary struct {
	RunID       string  `json:"runId"`
	Total       int     `json:"total"`
	Published   int     `json:"published"`
	Failed      int     `json:"failed"`
	InFlight    int     `json:"inFlight"`
	SuccessRate float64 `json:"successRate"`
}
