// Package generic implements a default, domain-agnostic Profile: plain
// text prompts built from a task description and optional file
// references, fenced-file extraction via the teacher's fileblocks
// convention for generate/revise, and a minimal validated context
// schema. It exists so the engine ships a working profile out of the
// box and so internal/ctxschema and profile.FenceExtractor have a real
// caller.
//
// Grounded on the original Python's built-in "generic" profile (plain
// task-description-driven prompts, no framework-specific scaffolding)
// and on the teacher's fenced-block convention for materializing files
// out of a response.
package generic

import (
	"context"
	"fmt"
	"strings"

	"github.com/scottcm/aiwf-engine/internal/artifact"
	"github.com/scottcm/aiwf-engine/internal/model"
	"github.com/scottcm/aiwf-engine/internal/profile"
)

// Context is the validated init-context shape the generic profile
// requires.
type Context struct {
	TaskDescription string `json:"task_description" validate:"required"`
	RepoPath        string `json:"repo_path,omitempty"`
}

// Profile is the default profile: it does not regenerate prompts on
// rejection (CanRegeneratePrompts returns false) and materializes no
// standards bundle by default.
type Profile struct{}

// New returns a Profile instance; it holds no state.
func New() (profile.Profile, error) {
	return Profile{}, nil
}

func (Profile) Name() string { return "generic" }

func (Profile) ContextSchema() any { return &Context{} }

func (Profile) DefaultStandardsProviderKey() string { return "" }

func (Profile) CanRegeneratePrompts() bool { return false }

func (Profile) RegeneratePrompt(ctx context.Context, phase model.Phase, pctx profile.PromptContext) (string, error) {
	return "", fmt.Errorf("generic: profile does not support prompt regeneration")
}

func (p Profile) Prompt(ctx context.Context, phase model.Phase, pctx profile.PromptContext) (string, error) {
	task, _ := pctx.Context["task_description"].(string)

	var b strings.Builder
	switch phase {
	case model.PhasePlan:
		b.WriteString("# Planning Task\n\n")
		b.WriteString(task)
		b.WriteString("\n\n${STANDARDS}\n\n")
		b.WriteString("Produce a step-by-step implementation plan.\n")

	case model.PhaseGenerate:
		b.WriteString("# Generation Task\n\n")
		b.WriteString("Implement the approved plan below.\n\n")
		b.WriteString("## Plan\n\n${PLAN}\n\n")
		b.WriteString("Emit each file as a fenced block annotated with its path, e.g.:\n")
		b.WriteString("```go file=internal/example/example.go\n...\n```\n")

	case model.PhaseReview:
		b.WriteString("# Review Task\n\n")
		b.WriteString(fmt.Sprintf("Review the iteration %d implementation against the plan.\n\n", pctx.Iteration))
		b.WriteString("Respond with a line `VERDICT: PASS` or `VERDICT: FAIL` followed by your findings.\n")

	case model.PhaseRevise:
		b.WriteString("# Revision Task\n\n")
		b.WriteString("Address the following review feedback:\n\n")
		b.WriteString(pctx.Feedback)
		b.WriteString("\n\nEmit only the files that changed, using the same fenced-block convention.\n")

	default:
		return "", fmt.Errorf("generic: no prompt template for phase %q", phase)
	}

	if pctx.Feedback != "" && phase != model.PhaseRevise {
		b.WriteString("\n\n## Prior Feedback\n\n")
		b.WriteString(pctx.Feedback)
	}
	if pctx.Suggested != "" {
		b.WriteString("\n\n## Suggested Starting Point\n\n")
		b.WriteString(pctx.Suggested)
	}

	return b.String(), nil
}

func (p Profile) ProcessResponse(ctx context.Context, phase model.Phase, responseText, sessionDir string, iteration int) (profile.ProcessingResult, error) {
	switch phase {
	case model.PhasePlan, model.PhaseReview:
		if strings.TrimSpace(responseText) == "" {
			return profile.ProcessingResult{
				Status:       profile.ProcessingFailed,
				ErrorMessage: "empty response",
			}, nil
		}
		return profile.ProcessingResult{Status: profile.ProcessingOK}, nil

	case model.PhaseGenerate, model.PhaseRevise:
		files, err := profile.FenceExtractor(responseText)
		if err != nil {
			return profile.ProcessingResult{}, err
		}
		if len(files) == 0 {
			return profile.ProcessingResult{
				Status:       profile.ProcessingFailed,
				ErrorMessage: "no fenced file blocks found in response",
			}, nil
		}
		writes := make([]profile.WriteOp, 0, len(files))
		for _, f := range files {
			writes = append(writes, profile.WriteOp{Path: f.Path, Content: f.Content})
		}
		return profile.ProcessingResult{
			Status:    profile.ProcessingOK,
			WritePlan: &profile.WritePlan{Writes: writes},
		}, nil

	default:
		return profile.ProcessingResult{}, fmt.Errorf("generic: no response processor for phase %q", phase)
	}
}

// fenceExtractorAdapter documents that FenceExtractor is directly reusable
// as an artifact.Extractor by any caller that needs one outside the
// ProcessResponse path (e.g. tests).
var _ artifact.Extractor = func(s string) ([]artifact.CodeFile, error) {
	return profile.FenceExtractor(s)
}
