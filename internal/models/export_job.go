package models

import "time"

type JobState string

const (
	JobStatePending JobState = "pending"
	JobStateRunning JobState = "running"
	JobStateDone    JobState = "done"
	JobStateFailed  JobState = "failed"
)

type ErrorKind string

const (
	ErrorKindConversionFailed  ErrorKind = "conversion_failed"
	ErrorKindConversionTimeout ErrorKind = "conversion_timeout"
	ErrorKindInternal          ErrorKind = "internal_error"
)

type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *JobError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// ExportJob is one conversion attempt. Only the runner that owns it mutates it,
// and only through the job store.
type ExportJob struct {
	ID               string    `json:"job_id" redis:"job_id" db:"job_id"`
	Key              JobKey    `json:"-" redis:"-" db:"job_key"`
	SourceURL        string    `json:"-" redis:"-" db:"-"`
	Quality          Quality   `json:"quality" redis:"quality" db:"quality"`
	State            JobState  `json:"state" redis:"state" db:"state"`
	Progress         *float64  `json:"progress,omitempty" redis:"-" db:"-"`
	RemainingSeconds *float64  `json:"estimated_remaining_seconds,omitempty" redis:"-" db:"-"`
	Width            int       `json:"width,omitempty" redis:"width" db:"width"`
	Height           int       `json:"height,omitempty" redis:"height" db:"height"`
	SizeBytes        int64     `json:"size_bytes,omitempty" redis:"size_bytes" db:"size_bytes"`
	CreatedAt        time.Time `json:"created_at" redis:"-" db:"created_at"`
	StartedAt        time.Time `json:"started_at,omitempty" redis:"-" db:"started_at"`
	FinishedAt       time.Time `json:"finished_at,omitempty" redis:"-" db:"finished_at"`
	ResultPath       string    `json:"-" redis:"-" db:"-"`
	Error            *JobError `json:"error,omitempty" redis:"-" db:"-"`
}

func (j *ExportJob) IsTerminal() bool {
	return j.State == JobStateDone || j.State == JobStateFailed
}

func (j *ExportJob) IsActive() bool {
	return j.State == JobStatePending || j.State == JobStateRunning
}

// Clone returns a deep copy safe to hand to pollers.
func (j *ExportJob) Clone() *ExportJob {
	c := *j
	if j.Progress != nil {
		p := *j.Progress
		c.Progress = &p
	}
	if j.RemainingSeconds != nil {
		r := *j.RemainingSeconds
		c.RemainingSeconds = &r
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	return &c
}

type ExportInput struct {
	SourceURL string `json:"source_url" query:"source_url" validate:"required,url,lte=2048"`
	Quality   string `json:"quality" query:"quality" validate:"required,oneof=low medium high"`
}

type IntakeResult struct {
	Job       *ExportJob
	Created   bool
	StatusURL string
}

// IntakeResponse is the intake body; reused jobs carry their current state.
type IntakeResponse struct {
	JobID     string   `json:"job_id"`
	State     JobState `json:"state"`
	StatusURL string   `json:"status_url"`
}

// ExportStatus is what a poller sees. It carries no key or filesystem path.
type ExportStatus struct {
	JobID            string    `json:"job_id"`
	State            JobState  `json:"state"`
	Progress         *float64  `json:"progress"`
	RemainingSeconds *float64  `json:"estimated_remaining_seconds,omitempty"`
	ResultURL        string    `json:"result_url,omitempty"`
	PlayerURL        string    `json:"player_url,omitempty"`
	Error            *JobError `json:"error,omitempty"`
}

type ConvertRequest struct {
	JobID      string
	SourceURL  string
	Quality    Quality
	OutputPath string
}

type ConvertResult struct {
	Variant  Variant
	Duration float64
}

// ConvertProgress is reported by the engine while ffmpeg runs.
type ConvertProgress struct {
	Percent          float64
	ProcessedSeconds float64
	TotalSeconds     float64
}

type PlayerPage struct {
	VideoURL string
	Width    int
	Height   int
}
