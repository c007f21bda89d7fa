package postgresadapter

import (
	"time"

	"gorm.io/datatypes"

	"turntable/contexts/media-generation/video-pipeline-service/domain/entities"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

type runModel struct {
	RunID            string     `gorm:"column:run_id;primaryKey"`
	Status           string     `gorm:"column:status;index"`
	Title            string     `gorm:"column:title"`
	Description      string     `gorm:"column:description"`
	Email            string     `gorm:"column:email;index"`
	ImageRef         string     `gorm:"column:image_ref"`
	DurationSeconds  int        `gorm:"column:duration_seconds"`
	SkipImageEdit    bool       `gorm:"column:skip_image_edit"`
	Category         string     `gorm:"column:category"`
	ForceNewPrompt   bool       `gorm:"column:force_new_prompt"`
	ClientIP         string     `gorm:"column:client_ip"`
	PromptID         string     `gorm:"column:prompt_id"`
	OutputRef        string     `gorm:"column:output_ref"`
	ErrorMessage     string     `gorm:"column:error_message"`
	FailureKind      string     `gorm:"column:failure_kind"`
	VideoJobID       string     `gorm:"column:video_job_id"`
	NotificationNote string     `gorm:"column:notification_note"`
	NotifiedAt       *time.Time `gorm:"column:notified_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (runModel) TableName() string {
	return "pipeline_runs"
}

func runModelFromEntity(run entities.PipelineRun) runModel {
	return runModel{
		RunID:            run.RunID,
		Status:           string(run.Status),
		Title:            run.Input.Title,
		Description:      run.Input.Description,
		Email:            run.Input.Email,
		ImageRef:         run.Input.ImageRef,
		DurationSeconds:  run.Input.DurationSeconds,
		SkipImageEdit:    run.Input.SkipImageEdit,
		Category:         run.Input.Category,
		ForceNewPrompt:   run.Input.ForceNewPrompt,
		ClientIP:         run.Input.ClientIP,
		PromptID:         run.PromptID,
		OutputRef:        run.OutputRef,
		ErrorMessage:     run.ErrorMessage,
		FailureKind:      string(run.FailureKind),
		VideoJobID:       run.VideoJobID,
		NotificationNote: run.NotificationNote,
		NotifiedAt:       run.NotifiedAt,
		CreatedAt:        run.CreatedAt.UTC(),
		UpdatedAt:        run.UpdatedAt.UTC(),
	}
}

func (m runModel) toEntity() entities.PipelineRun {
	return entities.PipelineRun{
		RunID:  m.RunID,
		Status: entities.RunStatus(m.Status),
		Input: entities.RunInput{
			Title:           m.Title,
			Description:     m.Description,
			Email:           m.Email,
			ImageRef:        m.ImageRef,
			DurationSeconds: m.DurationSeconds,
			SkipImageEdit:   m.SkipImageEdit,
			Category:        m.Category,
			ForceNewPrompt:  m.ForceNewPrompt,
			ClientIP:        m.ClientIP,
		},
		PromptID:         m.PromptID,
		OutputRef:        m.OutputRef,
		ErrorMessage:     m.ErrorMessage,
		FailureKind:      entities.FailureKind(m.FailureKind),
		VideoJobID:       m.VideoJobID,
		NotificationNote: m.NotificationNote,
		NotifiedAt:       m.NotifiedAt,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

type promptModel struct {
	PromptID    string    `gorm:"column:prompt_id;primaryKey"`
	Title       string    `gorm:"column:title;index"`
	Description string    `gorm:"column:description"`
	Email       string    `gorm:"column:email;index"`
	PromptText  string    `gorm:"column:prompt_text"`
	ModelID     string    `gorm:"column:model_id"`
	Approved    bool      `gorm:"column:approved"`
	Category    string    `gorm:"column:category"`
	RunID       string    `gorm:"column:run_id"`
	TaskID      string    `gorm:"column:task_id"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (promptModel) TableName() string {
	return "pipeline_prompts"
}

func promptModelFromEntity(record entities.PromptRecord) promptModel {
	return promptModel{
		PromptID:    record.PromptID,
		Title:       record.Title,
		Description: record.Description,
		Email:       record.Email,
		PromptText:  record.PromptText,
		ModelID:     record.ModelID,
		Approved:    record.Approved,
		Category:    record.Category,
		RunID:       record.RunID,
		TaskID:      record.TaskID,
		CreatedAt:   record.CreatedAt.UTC(),
	}
}

func (m promptModel) toEntity() entities.PromptRecord {
	return entities.PromptRecord{
		PromptID:    m.PromptID,
		Title:       m.Title,
		Description: m.Description,
		Email:       m.Email,
		PromptText:  m.PromptText,
		ModelID:     m.ModelID,
		Approved:    m.Approved,
		Category:    m.Category,
		RunID:       m.RunID,
		TaskID:      m.TaskID,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type stateModel struct {
	Key       string         `gorm:"column:key;primaryKey"`
	Value     datatypes.JSON `gorm:"column:value;type:jsonb"`
	ExpiresAt time.Time      `gorm:"column:expires_at;index"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (stateModel) TableName() string {
	return "pipeline_state"
}

const (
	taskStatusPending = "pending"
	taskStatusClaimed = "claimed"
	taskStatusDone    = "done"
)

type taskModel struct {
	TaskID       string         `gorm:"column:task_id;primaryKey"`
	Name         string         `gorm:"column:name"`
	RunID        string         `gorm:"column:run_id;index"`
	Attempt      int            `gorm:"column:attempt"`
	Continuation string         `gorm:"column:continuation"`
	Payload      datatypes.JSON `gorm:"column:payload;type:jsonb"`
	Status       string         `gorm:"column:status;index"`
	ClaimedBy    string         `gorm:"column:claimed_by"`
	LeaseUntil   *time.Time     `gorm:"column:lease_until"`
	NotBefore    time.Time      `gorm:"column:not_before;index"`
	EnqueuedAt   time.Time      `gorm:"column:enqueued_at"`
	AckedAt      *time.Time     `gorm:"column:acked_at"`
}

func (taskModel) TableName() string {
	return "pipeline_tasks"
}

func taskModelFromPort(task ports.Task) taskModel {
	return taskModel{
		TaskID:       task.TaskID,
		Name:         task.Name,
		RunID:        task.RunID,
		Attempt:      task.Attempt,
		Continuation: task.Continuation,
		Payload:      datatypes.JSON(task.Payload),
		Status:       taskStatusPending,
		NotBefore:    task.NotBefore.UTC(),
		EnqueuedAt:   task.EnqueuedAt.UTC(),
	}
}

func (m taskModel) toPort() ports.Task {
	return ports.Task{
		TaskID:       m.TaskID,
		Name:         m.Name,
		RunID:        m.RunID,
		Attempt:      m.Attempt,
		Continuation: m.Continuation,
		Payload:      []byte(m.Payload),
		NotBefore:    m.NotBefore.UTC(),
		EnqueuedAt:   m.EnqueuedAt.UTC(),
	}
}

// Models lists every table this adapter owns, for migrations.
func Models() []any {
	return []any{&runModel{}, &promptModel{}, &stateModel{}, &taskModel{}}
}
