// Package approvalcfg resolves the effective Stage Configuration for a
// (phase, stage) pair by cascading defaults → phase → stage overrides.
//
// Grounded on the original Python implementation's
// aiwf/application/config_models.py (WorkflowConfig.get_stage_config),
// translated from pydantic's "model_fields_set" explicit-override
// tracking to Go pointer fields: a nil pointer means "inherit", a non-nil
// pointer — even one holding the zero value — means "explicitly set,
// override". This is the same cascade idiom the teacher's own
// config.Phase uses implicitly (a phase either has a field or falls back
// to a package-level default), made explicit here because defaults can
// legitimately be overridden back to themselves.
package approvalcfg

import (
	"github.com/scottcm/aiwf-engine/internal/model"
)

// RawStageConfig is the YAML-facing shape: every field is a pointer so
// "absent" (inherit) is distinguishable from "present with zero value".
type RawStageConfig struct {
	AIProvider       *string        `yaml:"ai_provider"`
	ApprovalProvider *string        `yaml:"approval_provider"`
	MaxRetries       *int           `yaml:"approval_max_retries"`
	AllowRewrite     *bool          `yaml:"approval_allow_rewrite"`
	ApproverConfig   map[string]any `yaml:"approver_config"`
}

// RawPhaseConfig holds optional per-stage overrides for one phase.
type RawPhaseConfig struct {
	Prompt   *RawStageConfig `yaml:"prompt"`
	Response *RawStageConfig `yaml:"response"`
}

// RawWorkflowConfig is the top-level `workflow:` YAML tree of §6.
type RawWorkflowConfig struct {
	Defaults RawStageConfig  `yaml:"defaults"`
	Plan     *RawPhaseConfig `yaml:"plan"`
	Generate *RawPhaseConfig `yaml:"generate"`
	Review   *RawPhaseConfig `yaml:"review"`
	Revise   *RawPhaseConfig `yaml:"revise"`
}

// defaultStageConfig is the documented baseline applied when the raw
// config leaves every field unset.
func defaultStageConfig() model.StageConfig {
	return model.StageConfig{
		ApprovalProvider: "manual",
		MaxRetries:       0,
		AllowRewrite:     false,
		ApproverConfig:   map[string]any{},
	}
}

// Resolve computes the effective StageConfig for (phase, stage). Terminal
// phases return the `defaults` section applied over the documented
// baseline, with no phase or stage override, per §4.5.
func (c *RawWorkflowConfig) Resolve(phase model.Phase, stage model.Stage) model.StageConfig {
	result := applyOverrides(defaultStageConfig(), &c.Defaults)

	if phase.Terminal() {
		return result
	}

	phaseCfg := c.phaseConfig(phase)
	if phaseCfg == nil {
		return result
	}

	var stageCfg *RawStageConfig
	switch stage {
	case model.StagePrompt:
		stageCfg = phaseCfg.Prompt
	case model.StageResponse:
		stageCfg = phaseCfg.Response
	}
	if stageCfg == nil {
		return result
	}

	return applyOverrides(result, stageCfg)
}

func (c *RawWorkflowConfig) phaseConfig(phase model.Phase) *RawPhaseConfig {
	switch phase {
	case model.PhasePlan:
		return c.Plan
	case model.PhaseGenerate:
		return c.Generate
	case model.PhaseReview:
		return c.Review
	case model.PhaseRevise:
		return c.Revise
	default:
		return nil
	}
}

// applyOverrides merges raw onto base: unset (nil) fields inherit from
// base, explicitly-set fields (including zero values) override it. A
// non-empty ApproverConfig map replaces the base map wholesale rather
// than merging key-by-key, matching the original's stage_config.
func applyOverrides(base model.StageConfig, raw *RawStageConfig) model.StageConfig {
	if raw == nil {
		return base
	}
	if raw.AIProvider != nil {
		base.AIProvider = *raw.AIProvider
	}
	if raw.ApprovalProvider != nil {
		base.ApprovalProvider = *raw.ApprovalProvider
	}
	if raw.MaxRetries != nil {
		base.MaxRetries = *raw.MaxRetries
	}
	if raw.AllowRewrite != nil {
		base.AllowRewrite = *raw.AllowRewrite
	}
	if len(raw.ApproverConfig) > 0 {
		merged := make(map[string]any, len(raw.ApproverConfig))
		for k, v := range raw.ApproverConfig {
			merged[k] = v
		}
		base.ApproverConfig = merged
	}
	return base
}
