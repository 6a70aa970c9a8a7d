// Package model holds the pure data types that make up the persisted
// workflow snapshot and the ephemeral values threaded through a single
// command invocation. Nothing here imports any other internal package —
// services depend on model, never the reverse.
package model

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyRejectionFeedback is returned by NewApprovalResult when a
// REJECTED decision is constructed without feedback.
var ErrEmptyRejectionFeedback = errors.New("model: rejection requires non-empty feedback")

// Phase is a major workflow state.
type Phase string

const (
	PhaseInit      Phase = "INIT"
	PhasePlan      Phase = "PLAN"
	PhaseGenerate  Phase = "GENERATE"
	PhaseReview    Phase = "REVIEW"
	PhaseRevise    Phase = "REVISE"
	PhaseComplete  Phase = "COMPLETE"
	PhaseCancelled Phase = "CANCELLED"
	PhaseError     Phase = "ERROR"
)

// Terminal reports whether a phase has no further legal commands other
// than inspection.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseComplete, PhaseCancelled, PhaseError:
		return true
	default:
		return false
	}
}

// Stage distinguishes the two halves of a non-terminal phase.
type Stage string

const (
	StagePrompt   Stage = "PROMPT"
	StageResponse Stage = "RESPONSE"
	StageNone     Stage = ""
)

// Status is the coarse outcome of the workflow as a whole.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusError      Status = "ERROR"
	StatusCancelled  Status = "CANCELLED"
)

// Command is a single externally-driven instruction to the orchestrator.
type Command string

const (
	CmdInit    Command = "init"
	CmdApprove Command = "approve"
	CmdReject  Command = "reject"
	CmdRetry   Command = "retry"
	CmdCancel  Command = "cancel"
)

// PhaseTransition is one append-only entry in the audit trail.
type PhaseTransition struct {
	Phase     Phase     `json:"phase"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Artifact records one file materialized to disk during the workflow.
//
// sha256 is non-null only after the approval that covers it; it is never
// mutated afterward — later iterations produce new Artifact records even
// for byte-identical copy-forward files.
type Artifact struct {
	Path      string    `json:"path"`
	Phase     Phase     `json:"phase"`
	Iteration int       `json:"iteration"`
	SHA256    *string   `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkflowState is the complete persisted snapshot for one session.
type WorkflowState struct {
	// Identity
	SessionID string `json:"session_id"`
	Profile   string `json:"profile"`

	// Position
	Phase             Phase  `json:"phase"`
	Stage             Stage  `json:"stage"`
	Status            Status `json:"status"`
	CurrentIteration  int    `json:"current_iteration"`
	ExecutionMode     string `json:"execution_mode,omitempty"` // "interactive" | "automated"

	// Provider bindings
	Providers         map[string]string `json:"providers"`
	StandardsProvider string            `json:"standards_provider"`

	// Context
	Context map[string]any `json:"context"`

	// Approval bookkeeping
	PendingApproval   bool              `json:"pending_approval"`
	PlanApproved      bool              `json:"plan_approved"`
	ReviewApproved    bool              `json:"review_approved"`
	PlanHash          string            `json:"plan_hash,omitempty"`
	ReviewHash        string            `json:"review_hash,omitempty"`
	PromptHashes      map[string]string `json:"prompt_hashes"`
	RetryCount        int               `json:"retry_count"`
	ApprovalFeedback  string            `json:"approval_feedback,omitempty"`
	SuggestedContent  string            `json:"suggested_content,omitempty"`
	StandardsHash     string            `json:"standards_hash,omitempty"`

	// Artifacts
	Artifacts []Artifact `json:"artifacts"`

	// Audit
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	PhaseHistory []PhaseTransition `json:"phase_history"`
	LastError    string            `json:"last_error,omitempty"`

	// Transient — never persisted.
	Messages []string `json:"-"`
}

// NewWorkflowState builds the INIT snapshot for a new session.
func NewWorkflowState(sessionID, profile string, now time.Time) *WorkflowState {
	return &WorkflowState{
		SessionID:        sessionID,
		Profile:          profile,
		Phase:            PhaseInit,
		Stage:            StageNone,
		Status:           StatusInProgress,
		CurrentIteration: 1,
		ExecutionMode:    "interactive",
		Providers:        map[string]string{},
		Context:          map[string]any{},
		PromptHashes:     map[string]string{},
		Artifacts:        nil,
		CreatedAt:        now,
		UpdatedAt:        now,
		PhaseHistory: []PhaseTransition{
			{Phase: PhaseInit, Status: StatusInProgress, Timestamp: now},
		},
	}
}

// RecordTransition appends to the audit trail and stamps UpdatedAt.
func (s *WorkflowState) RecordTransition(now time.Time) {
	s.PhaseHistory = append(s.PhaseHistory, PhaseTransition{
		Phase:     s.Phase,
		Status:    s.Status,
		Timestamp: now,
	})
	s.UpdatedAt = now
}

// ClearApprovalBookkeeping resets per-stage retry state after a successful
// transition, per the invariant "retry_count = 0 immediately after every
// successful stage transition".
func (s *WorkflowState) ClearApprovalBookkeeping() {
	s.RetryCount = 0
	s.ApprovalFeedback = ""
	s.SuggestedContent = ""
	s.PendingApproval = false
}

// StageConfig is the resolved, non-persisted configuration for one
// (phase, stage) pair.
type StageConfig struct {
	AIProvider       string
	ApprovalProvider string
	MaxRetries       int
	AllowRewrite     bool
	ApproverConfig   map[string]any
}

// TransitionResult is the pure value produced by a Transition Table lookup.
type TransitionResult struct {
	NextPhase      Phase
	NextStage      Stage
	Action         Action
	StatusOverride Status // empty means "no override"
}

// Action names the post-transition side effect the Orchestrator must run.
type Action string

const (
	ActionNone Action = ""

	// ActionGeneratePrompt writes the initial PLAN/PROMPT on init.
	ActionGeneratePrompt Action = "generate_prompt"

	// ActionInvokeProvider runs the AI provider against the current
	// PROMPT stage's rendered prompt and writes the response file.
	ActionInvokeProvider Action = "invoke_provider"

	// ActionApprovePlanResponse hashes the plan response, copies it to
	// session-root plan.md, and generates the GENERATE/PROMPT prompt.
	ActionApprovePlanResponse Action = "approve_plan_response"

	// ActionApproveGenerateResponse extracts code files from the
	// generation response, creates Artifact records, and generates the
	// REVIEW/PROMPT prompt.
	ActionApproveGenerateResponse Action = "approve_generate_response"

	// ActionApproveReviewResponse hashes the review response and parses
	// its verdict; the branch to COMPLETE vs REVISE/PROMPT is the one
	// data-dependent transition in the table.
	ActionApproveReviewResponse Action = "approve_review_response"

	// ActionApproveReviseResponse extracts revised code, copies forward
	// unchanged files from the previous iteration, and generates the next
	// REVIEW/PROMPT prompt.
	ActionApproveReviseResponse Action = "approve_revise_response"

	// ActionCancel has no side effect beyond the status override.
	ActionCancel Action = "cancel"
)

// ApprovalDecision is the three-way outcome of the Approval Gate.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "APPROVED"
	DecisionRejected ApprovalDecision = "REJECTED"
	DecisionPending  ApprovalDecision = "PENDING"
)

// ApprovalResult is the ephemeral output of one gate evaluation.
type ApprovalResult struct {
	Decision         ApprovalDecision
	Feedback         string
	SuggestedContent string
}

// Verdict is the PASS/FAIL outcome parsed out of a review response.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// NewApprovalResult constructs an ApprovalResult, enforcing that a
// REJECTED decision always carries non-empty feedback. Callers that would
// otherwise produce an empty-feedback rejection must coerce a message
// first (as the gate's parseThreeWay does) — this constructor refuses to let
// one through silently.
func NewApprovalResult(decision ApprovalDecision, feedback, suggested string) (ApprovalResult, error) {
	if decision == DecisionRejected && strings.TrimSpace(feedback) == "" {
		return ApprovalResult{}, ErrEmptyRejectionFeedback
	}
	return ApprovalResult{Decision: decision, Feedback: feedback, SuggestedContent: suggested}, nil
}
