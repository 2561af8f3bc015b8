package types

import (
	"encoding/json"
	"strings"
)

// GenerationMetadata is the retrospective context that produced an
// assistant turn.
type GenerationMetadata struct {
	Index              int               `json:"index"`
	Prompt             string            `json:"prompt"`
	Stage              Stage             `json:"current_part"`
	TaskID             string            `json:"current_task,omitempty"`
	ModuleID           string            `json:"current_module,omitempty"`
	TaskSelectorOutput *string           `json:"task_selector_output,omitempty"`
	Supervision        *SupervisionEvent `json:"supervision,omitempty"`
}

type PromptRecord struct {
	Prompt             string             `json:"prompt"`
	CurrentTask        json.RawMessage    `json:"current_task,omitempty"`
	CurrentPart        json.RawMessage    `json:"current_part,omitempty"`
	CurrentModule      json.RawMessage    `json:"current_module,omitempty"`
	Supervision        *SupervisionRecord `json:"supervision,omitempty"`
	TaskSelectorOutput *string            `json:"task_selector_output,omitempty"`
}

// Empty reports whether the backend returned no usable record.
func (r PromptRecord) Empty() bool {
	return strings.TrimSpace(r.Prompt) == ""
}

func (r PromptRecord) Normalize(index int) GenerationMetadata {
	meta := GenerationMetadata{
		Index:  index,
		Prompt: r.Prompt,
	}
	if stage, ok := rawStage(r.CurrentPart); ok {
		meta.Stage = stage
	}
	meta.TaskID, _ = rawIdentifier(r.CurrentTask)
	meta.ModuleID, _ = rawIdentifier(r.CurrentModule)
	if r.TaskSelectorOutput != nil && strings.TrimSpace(*r.TaskSelectorOutput) != "" {
		output := *r.TaskSelectorOutput
		meta.TaskSelectorOutput = &output
	}
	if r.Supervision != nil {
		event, _ := r.Supervision.Normalize()
		if event.MessageIndex == NoSupervisionMessageIndex {
			event.MessageIndex = index
		}
		meta.Supervision = &event
	}
	return meta
}
