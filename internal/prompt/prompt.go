// Package prompt assembles the final prompt text sent to an AI provider:
// engine-owned variable substitution plus a provider-ability-dependent
// output-destination instruction appended to the profile's generated
// body.
//
// Variable substitution itself is lifted from the teacher's
// internal/dispatch/expand.go (os.Expand over a vars map with environment
// fallback); the output-instruction behavior is grounded on the original
// Python's aiwf/application/prompt_assembler.py, which branches on the
// provider's filesystem ability instead of hardcoding a single convention.
package prompt

import (
	"fmt"
	"os"
	"path"

	"github.com/scottcm/aiwf-engine/internal/model"
	"github.com/scottcm/aiwf-engine/internal/provider"
)

// EngineVars returns the engine-owned substitution variables for a
// session: workspace-relative references to files the engine itself
// manages, so the resulting text is stable regardless of the AI
// provider's own working directory.
func EngineVars(sessionID string) map[string]string {
	base := path.Join(".aiwf", "sessions", sessionID)
	return map[string]string{
		"STANDARDS": path.Join(base, "standards-bundle.md"),
		"PLAN":      path.Join(base, "plan.md"),
	}
}

// ExpandVars substitutes ${VAR} / $VAR references in template using vars,
// falling back to the OS environment for anything vars doesn't define.
func ExpandVars(template string, vars map[string]string) string {
	return os.Expand(template, func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}

// Assemble substitutes engine variables into profilePrompt and appends an
// output-destination instruction appropriate to the provider's
// filesystem ability. responseRelPath is the session-root-relative path
// the response is expected to land at (e.g. "iteration-1/planning-response.md");
// pass "" to suppress the instruction (no RESPONSE stage, or the provider
// doesn't need steering toward a file).
func Assemble(sessionDir, sessionID, profilePrompt string, fsAbility provider.FilesystemAbility, responseRelPath string) string {
	vars := EngineVars(sessionID)
	body := ExpandVars(profilePrompt, vars)

	instructions := outputInstructions(sessionDir, fsAbility, responseRelPath)
	if instructions == "" {
		return body
	}
	return body + "\n\n---\n\n" + instructions
}

func outputInstructions(sessionDir string, fsAbility provider.FilesystemAbility, responseRelPath string) string {
	if responseRelPath == "" {
		return ""
	}
	filename := path.Base(responseRelPath)

	switch fsAbility {
	case provider.FSLocalWrite:
		absPath := path.Join(sessionDir, responseRelPath)
		return fmt.Sprintf("## Output Destination\n\nDo not display the file contents to the screen.\nSave your response to `%s`", absPath)
	case provider.FSLocalRead:
		return fmt.Sprintf("## Output Destination\n\nName your output file `%s`", filename)
	case provider.FSWriteOnly:
		return fmt.Sprintf("## Output Destination\n\nCreate a downloadable file named `%s`", filename)
	default: // FSNone or unrecognized
		return ""
	}
}

// relPathsForStage returns the fixed session-root-relative prompt and
// response paths for one ING phase at the given iteration, per the fixed
// layout in spec.md §6 ("exact relative paths per (phase, stage) are
// fixed by the engine, not by profiles").
func relPathsForStage(phase model.Phase, iteration int) (promptRel, responseRel string) {
	n := fmt.Sprintf("iteration-%d", iteration)
	switch phase {
	case model.PhasePlan:
		return path.Join(n, "planning-prompt.md"), path.Join(n, "planning-response.md")
	case model.PhaseGenerate:
		return path.Join(n, "generation-prompt.md"), path.Join(n, "generation-response.md")
	case model.PhaseReview:
		return path.Join(n, "review-prompt.md"), path.Join(n, "review-response.md")
	case model.PhaseRevise:
		return path.Join(n, "revision-prompt.md"), path.Join(n, "revision-response.md")
	default:
		return "", ""
	}
}

// PromptPath returns the session-root-relative prompt file path for
// (phase, iteration).
func PromptPath(phase model.Phase, iteration int) string {
	p, _ := relPathsForStage(phase, iteration)
	return p
}

// ResponsePath returns the session-root-relative response file path for
// (phase, iteration).
func ResponsePath(phase model.Phase, iteration int) string {
	_, r := relPathsForStage(phase, iteration)
	return r
}
