package httptransport

type StartPipelineRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Email           string `json:"email"`
	ImageURL        string `json:"image_url"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	SkipImageEdit   bool   `json:"skip_image_edit,omitempty"`
	Category        string `json:"category,omitempty"`
	ForceNewPrompt  bool   `json:"force_new_prompt,omitempty"`
}

type StartPipelineResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

type PipelineRunDTO struct {
	RunID            string `json:"run_id"`
	Status           string `json:"status"`
	Title            string `json:"title"`
	Email            string `json:"email"`
	ImageURL         string `json:"image_url"`
	DurationSeconds  int    `json:"duration_seconds"`
	SkipImageEdit    bool   `json:"skip_image_edit"`
	Category         string `json:"category,omitempty"`
	PromptID         string `json:"prompt_id,omitempty"`
	OutputURL        string `json:"output_url,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	FailureKind      string `json:"failure_kind,omitempty"`
	NotificationNote string `json:"notification_note,omitempty"`
	NotifiedAt       string `json:"notified_at,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type GetPipelineRunResponse struct {
	Run PipelineRunDTO `json:"run"`
}

type ListPromptsRequest struct {
	Email string `json:"email"`
	Limit int    `json:"limit,omitempty"`
}

type PromptDTO struct {
	PromptID   string `json:"prompt_id"`
	Title      string `json:"title"`
	PromptText string `json:"prompt_text"`
	ModelID    string `json:"model_id,omitempty"`
	Category   string `json:"category,omitempty"`
	Approved   bool   `json:"approved"`
	RunID      string `json:"run_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type ListPromptsResponse struct {
	Items []PromptDTO `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
