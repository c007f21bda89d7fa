package workers

import (
	"log/slog"

	application "turntable/contexts/media-generation/video-pipeline-service/application"
	"turntable/contexts/media-generation/video-pipeline-service/application/retry"
)

// RetryPolicies holds one policy per retried component.
type RetryPolicies struct {
	Prompt       retry.Policy
	ImageEdit    retry.Policy
	VideoGen     retry.Policy
	Continuation retry.Policy
	Notify       retry.Policy
}

func DefaultRetryPolicies() RetryPolicies {
	return RetryPolicies{
		Prompt:       retry.DefaultPolicy(3),
		ImageEdit:    retry.DefaultPolicy(2),
		VideoGen:     retry.DefaultPolicy(1),
		Continuation: retry.DefaultPolicy(3),
		Notify:       retry.DefaultPolicy(3),
	}
}

type Stages struct {
	Prompt               PromptStage
	StartImageEdit       StartImageEdit
	ImageEdit            ImageEditStage
	StartVideoGeneration StartVideoGeneration
	VideoGeneration      VideoGenStage
	Notifier             Notifier
	RunFailer            RunFailer
}

// NewHandlers wires the stages to their task names. Continuations and the
// notifier retry every error.
func NewHandlers(stages Stages, policies RetryPolicies, logger *slog.Logger) map[string]Handler {
	withLogger := func(policy retry.Policy) retry.Policy {
		if policy.Logger == nil {
			policy.Logger = logger
		}
		return policy
	}
	continuation := withLogger(policies.Continuation)
	continuation.Transient = retry.AlwaysTransient
	notify := withLogger(policies.Notify)
	notify.Transient = retry.AlwaysTransient

	return map[string]Handler{
		application.TaskGeneratePrompt: {
			Stage:   StagePrompt,
			Policy:  withLogger(policies.Prompt),
			Execute: stages.Prompt.Execute,
		},
		application.TaskStartImageEdit: {
			Stage:    StageStartImageEdit,
			Policy:   continuation,
			Execute:  stages.StartImageEdit.Execute,
			Complete: stages.RunFailer.Complete,
		},
		application.TaskEditImage: {
			Stage:   StageImageEdit,
			Policy:  withLogger(policies.ImageEdit),
			Execute: stages.ImageEdit.Execute,
		},
		application.TaskStartVideoGeneration: {
			Stage:    StageStartVideoGeneration,
			Policy:   continuation,
			Execute:  stages.StartVideoGeneration.Execute,
			Complete: stages.RunFailer.Complete,
		},
		application.TaskGenerateVideo: {
			Stage:    StageVideoGeneration,
			Policy:   withLogger(policies.VideoGen),
			Execute:  stages.VideoGeneration.Execute,
			Complete: stages.VideoGeneration.Complete,
		},
		application.TaskNotify: {
			Stage:    StageNotify,
			Policy:   notify,
			Execute:  stages.Notifier.Execute,
			Complete: stages.Notifier.Complete,
		},
	}
}
