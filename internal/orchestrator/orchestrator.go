// Package orchestrator implements the Orchestrator (§4.2): the single
// command dispatcher that loads a session snapshot, validates command
// legality, runs the approval gate, performs pre-transition artifact
// work, looks up the transition, executes the resulting action, emits
// events, and saves the snapshot — exactly once per command invocation.
//
// Grounded on the teacher's internal/runner.Runner (load state → dispatch
// one phase → persist) generalized from a fixed phase list walked in
// order to a (phase, stage, command) table lookup, and on the original
// Python's aiwf/application/workflow_orchestrator.py for the pipeline
// order itself (gate before artifact work, artifact work before
// transition, transition before save).
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	pkgerrors "github.com/pkg/errors"

	"github.com/scottcm/aiwf-engine/internal/approvalcfg"
	"github.com/scottcm/aiwf-engine/internal/artifact"
	"github.com/scottcm/aiwf-engine/internal/ctxschema"
	"github.com/scottcm/aiwf-engine/internal/events"
	"github.com/scottcm/aiwf-engine/internal/gate"
	"github.com/scottcm/aiwf-engine/internal/model"
	"github.com/scottcm/aiwf-engine/internal/pathsafe"
	"github.com/scottcm/aiwf-engine/internal/profile"
	"github.com/scottcm/aiwf-engine/internal/prompt"
	"github.com/scottcm/aiwf-engine/internal/provider"
	"github.com/scottcm/aiwf-engine/internal/standards"
	"github.com/scottcm/aiwf-engine/internal/store"
	"github.com/scottcm/aiwf-engine/internal/transition"
)

// fileExists reports whether relPath exists under sessionDir, validating
// containment first so a crafted path can't be used to probe outside the
// session root.
func fileExists(sessionDir, relPath string) bool {
	abs, err := pathsafe.ValidateForWrite(sessionDir, relPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// readSessionFile reads relPath under sessionDir, re-validating
// containment immediately before the open.
func readSessionFile(sessionDir, relPath string) ([]byte, error) {
	abs, err := pathsafe.ValidateForWrite(sessionDir, relPath)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "orchestrator: reading session file")
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "orchestrator: reading %s", relPath)
	}
	return data, nil
}

// writeSessionFile writes content to relPath under sessionDir, creating
// parent directories as needed, through the same containment check every
// artifact write goes through.
func writeSessionFile(sessionDir, relPath, content string) error {
	abs, err := pathsafe.ValidateForWrite(sessionDir, relPath)
	if err != nil {
		return pkgerrors.Wrap(err, "orchestrator: writing session file")
	}
	if err := os.MkdirAll(dirOf(abs), 0o755); err != nil {
		return pkgerrors.Wrap(err, "orchestrator: creating parent directory")
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return pkgerrors.Wrapf(err, "orchestrator: writing %s", relPath)
	}
	return nil
}

// writeEngineFile writes one of the two engine-owned protected filenames
// (standards-bundle.md; session.json goes through store.Store instead)
// directly, bypassing pathsafe's overwrite protection — that protection
// exists to stop profile-emitted artifact paths from clobbering these
// files, not to stop the engine itself from creating them once at init.
func writeEngineFile(sessionDir, relPath, content string) error {
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return pkgerrors.Wrap(err, "orchestrator: creating session directory")
	}
	abs := sessionDir + string(os.PathSeparator) + relPath
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return pkgerrors.Wrapf(err, "orchestrator: writing %s", relPath)
	}
	return nil
}

func dirOf(p string) string {
	i := strings.LastIndexByte(p, os.PathSeparator)
	if i < 0 {
		return "."
	}
	return p[:i]
}

func toUpper(s string) string {
	return strings.Map(unicode.ToUpper, s)
}

// containsWord reports whether word appears in upper, the same
// whole-text containment check the gate's keyword-scan fallback uses.
func containsWord(upper, word string) bool {
	return strings.Contains(upper, word)
}

// MissingArtifactError reports that an approval requires a file that
// isn't on disk yet (§7 MissingArtifact).
type MissingArtifactError struct {
	SessionID string
	RelPath   string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("orchestrator: missing required artifact %q for session %s", e.RelPath, e.SessionID)
}

// TerminalStatusError reports a command other than inspection issued
// against a terminal session.
type TerminalStatusError struct {
	SessionID string
	Phase     model.Phase
}

func (e *TerminalStatusError) Error() string {
	return fmt.Sprintf("orchestrator: session %s is terminal at phase %s, no further commands are legal", e.SessionID, e.Phase)
}

// Orchestrator wires every service collaborator together. All fields are
// required except Emitter (nil means no events are emitted) and
// HashPrompts.
type Orchestrator struct {
	Store         *store.Store
	Profiles      *profile.Factory
	AIProviders   *provider.AIProviderFactory
	ApprovalProvs *provider.ApprovalProviderFactory
	Standards     *provider.StandardsProviderFactory
	Config        *approvalcfg.RawWorkflowConfig
	Emitter       *events.Emitter
	HashPrompts   bool
}

// InitOptions carries the arguments to the init command.
type InitOptions struct {
	SessionID         string // id of the new session; the caller generates it (e.g. via uuid)
	Profile           string
	Context           map[string]any
	StandardsProvider string // empty means use the profile's default
	AIProviderKey     string
	ApprovalProvKey   string
	ExecutionMode     string // "interactive" | "automated"; empty defaults to interactive
}

// Init creates a new session: validates context against the profile's
// schema, materializes the standards bundle, writes the first PLAN/PROMPT
// prompt, and persists the resulting snapshot (INIT stays recorded in its
// phase history).
func (o *Orchestrator) Init(ctx context.Context, opts InitOptions) (*model.WorkflowState, error) {
	if o.Store.Exists(opts.SessionID) {
		return nil, pkgerrors.Errorf("orchestrator: init: session %q already exists", opts.SessionID)
	}

	prof, err := o.Profiles.Create(opts.Profile)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "orchestrator: init")
	}
	if err := ctxschema.Validate(opts.Profile, prof.ContextSchema(), opts.Context); err != nil {
		return nil, err
	}

	sessionDir := o.Store.SessionDir(opts.SessionID)
	if err := pathsafe.NormalizeContextPaths(sessionDir, opts.Context); err != nil {
		return nil, pkgerrors.Wrap(err, "orchestrator: init: invalid context path")
	}

	now := time.Now().UTC()
	state := model.NewWorkflowState(opts.SessionID, opts.Profile, now)
	if opts.ExecutionMode != "" {
		state.ExecutionMode = opts.ExecutionMode
	}
	state.Context = opts.Context
	state.Providers = map[string]string{
		"ai":       opts.AIProviderKey,
		"approval": opts.ApprovalProvKey,
	}

	standardsKey := opts.StandardsProvider
	if standardsKey == "" {
		standardsKey = prof.DefaultStandardsProviderKey()
	}
	state.StandardsProvider = standardsKey

	if standardsKey != "" {
		sp, err := o.Standards.Create(standardsKey)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "orchestrator: init: resolving standards provider")
		}
		bundle, err := sp.Materialize(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "orchestrator: init: materializing standards bundle")
		}
		if err := writeEngineFile(sessionDir, "standards-bundle.md", bundle); err != nil {
			return nil, err
		}
		state.StandardsHash = standards.BundleHash(bundle)
	}

	result, err := transition.Lookup(state.Phase, state.Stage, model.CmdInit, false)
	if err != nil {
		return nil, err
	}
	state.Phase = result.NextPhase
	state.Stage = result.NextStage

	if err := o.writeNextPrompt(ctx, prof, state, state.Phase); err != nil {
		return nil, err
	}

	state.RecordTransition(now)
	if _, err := o.Store.Save(state); err != nil {
		return nil, pkgerrors.Wrap(err, "orchestrator: init: saving session")
	}

	o.emit(events.PhaseEntered, state, "session initialized")
	return state, nil
}

// Approve runs the approval gate against the current stage and, on
// APPROVED, performs artifact work and the transition; on REJECTED it
// retries within budget or records feedback; on PENDING it marks the
// session awaiting a manual decision. An approve issued while the session
// is awaiting that decision is the decision itself: the gate is not run
// again and the transition proceeds.
func (o *Orchestrator) Approve(ctx context.Context, sessionID string) (*model.WorkflowState, error) {
	state, err := o.Store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if state.Phase.Terminal() {
		return nil, &TerminalStatusError{SessionID: sessionID, Phase: state.Phase}
	}
	if !transition.IsLegal(state.Phase, state.Stage, model.CmdApprove, state.PendingApproval) {
		return nil, &transition.InvalidCommandError{Phase: state.Phase, Stage: state.Stage, Command: model.CmdApprove}
	}

	prof, err := o.Profiles.Create(state.Profile)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "orchestrator: approve")
	}
	stageCfg := o.Config.Resolve(state.Phase, state.Stage)
	sessionDir := o.Store.SessionDir(sessionID)

	if state.PendingApproval {
		return o.completeApproval(ctx, prof, state, sessionDir)
	}

	for {
		result, err := o.runGate(ctx, state, stageCfg, sessionDir)
		if err != nil {
			state.LastError = err.Error()
			o.Store.Save(state)
			return state, err
		}

		switch result.Decision {
		case model.DecisionPending:
			state.PendingApproval = true
			state.LastError = ""
			o.emit(events.ApprovalRequired, state, "")
			if _, err := o.Store.Save(state); err != nil {
				return nil, err
			}
			return state, nil

		case model.DecisionRejected:
			state.ApprovalFeedback = result.Feedback
			state.SuggestedContent = result.SuggestedContent

			if state.Stage == model.StagePrompt {
				if err := o.applySuggestedContent(state, stageCfg, sessionDir, result); err != nil {
					return nil, err
				}
				if !prof.CanRegeneratePrompts() || state.RetryCount >= stageCfg.MaxRetries {
					state.RetryCount++
					state.LastError = ""
					o.emit(events.ApprovalRejected, state, result.Feedback)
					if _, err := o.Store.Save(state); err != nil {
						return nil, err
					}
					return state, nil
				}
				if err := o.regeneratePrompt(ctx, prof, state, sessionDir, result.Feedback); err != nil {
					state.LastError = err.Error()
					o.Store.Save(state)
					return state, err
				}
				state.RetryCount++
				continue
			}

			if state.RetryCount < stageCfg.MaxRetries {
				if err := o.applySuggestedContent(state, stageCfg, sessionDir, result); err != nil {
					return nil, err
				}
				if err := o.reinvokeProvider(ctx, prof, state, stageCfg, sessionDir, result.Feedback); err != nil {
					state.LastError = err.Error()
					o.Store.Save(state)
					return state, err
				}
				state.RetryCount++
				continue
			}
			state.LastError = ""
			o.emit(events.ApprovalRejected, state, result.Feedback)
			if _, err := o.Store.Save(state); err != nil {
				return nil, err
			}
			return state, nil

		case model.DecisionApproved:
			return o.completeApproval(ctx, prof, state, sessionDir)
		}
	}
}

// completeApproval performs the pre-transition artifact work, looks up
// the transition, executes its action, records history, emits events,
// and saves.
func (o *Orchestrator) completeApproval(ctx context.Context, prof profile.Profile, state *model.WorkflowState, sessionDir string) (*model.WorkflowState, error) {
	o.emit(events.ApprovalGranted, state, "")
	svc := artifact.New(sessionDir)

	if err := o.performArtifactWork(ctx, svc, state, prof, sessionDir); err != nil {
		state.LastError = err.Error()
		o.Store.Save(state)
		return state, err
	}

	var result model.TransitionResult
	if state.Phase == model.PhaseReview && state.Stage == model.StageResponse {
		verdict, err := parseReviewVerdict(state, sessionDir)
		if err != nil {
			state.LastError = err.Error()
			o.Store.Save(state)
			return state, err
		}
		result = transition.LookupReviewVerdict(verdict)
	} else {
		var err error
		result, err = transition.Lookup(state.Phase, state.Stage, model.CmdApprove, state.PendingApproval)
		if err != nil {
			return nil, err
		}
	}

	state.Phase = result.NextPhase
	state.Stage = result.NextStage
	if result.StatusOverride != "" {
		state.Status = result.StatusOverride
	}
	state.ClearApprovalBookkeeping()
	state.LastError = ""
	now := time.Now().UTC()
	state.RecordTransition(now)

	if err := o.executeAction(ctx, result.Action, prof, state, sessionDir); err != nil {
		state.LastError = err.Error()
		o.Store.Save(state)
		return state, err
	}

	if state.Phase.Terminal() {
		if state.Status == model.StatusSuccess {
			o.emit(events.WorkflowCompleted, state, "")
		} else if state.Status == model.StatusCancelled {
			o.emit(events.WorkflowCancelled, state, "")
		}
	} else {
		o.emit(events.PhaseEntered, state, "")
	}

	if _, err := o.Store.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}

// performArtifactWork executes the Artifact Service step appropriate to
// the phase/stage just approved, per §4.3.
func (o *Orchestrator) performArtifactWork(ctx context.Context, svc *artifact.Service, state *model.WorkflowState, prof profile.Profile, sessionDir string) error {
	switch {
	case state.Phase == model.PhasePlan && state.Stage == model.StageResponse:
		return o.approvePlanResponse(svc, state, sessionDir)
	case state.Phase == model.PhaseReview && state.Stage == model.StageResponse:
		return o.approveReviewResponse(svc, state, sessionDir)
	case state.Phase == model.PhaseGenerate && state.Stage == model.StageResponse:
		return o.approveGenerateOrReviseResponse(ctx, svc, state, prof, sessionDir, false)
	case state.Phase == model.PhaseRevise && state.Stage == model.StageResponse:
		return o.approveGenerateOrReviseResponse(ctx, svc, state, prof, sessionDir, true)
	default:
		return nil
	}
}

func (o *Orchestrator) approvePlanResponse(svc *artifact.Service, state *model.WorkflowState, sessionDir string) error {
	responseRel := prompt.ResponsePath(model.PhasePlan, state.CurrentIteration)
	if !fileExists(sessionDir, responseRel) {
		return &MissingArtifactError{SessionID: state.SessionID, RelPath: responseRel}
	}
	sum, err := svc.HashFile(responseRel)
	if err != nil {
		return err
	}
	data, err := readSessionFile(sessionDir, responseRel)
	if err != nil {
		return err
	}
	if err := writeSessionFile(sessionDir, "plan.md", string(data)); err != nil {
		return err
	}
	state.PlanHash = sum
	state.PlanApproved = true
	return nil
}

func (o *Orchestrator) approveReviewResponse(svc *artifact.Service, state *model.WorkflowState, sessionDir string) error {
	responseRel := prompt.ResponsePath(model.PhaseReview, state.CurrentIteration)
	if !fileExists(sessionDir, responseRel) {
		return &MissingArtifactError{SessionID: state.SessionID, RelPath: responseRel}
	}
	sum, err := svc.HashFile(responseRel)
	if err != nil {
		return err
	}
	state.ReviewHash = sum
	state.ReviewApproved = true
	return nil
}

func (o *Orchestrator) approveGenerateOrReviseResponse(ctx context.Context, svc *artifact.Service, state *model.WorkflowState, prof profile.Profile, sessionDir string, isRevise bool) error {
	phase := model.PhaseGenerate
	if isRevise {
		phase = model.PhaseRevise
	}
	responseRel := prompt.ResponsePath(phase, state.CurrentIteration)
	if !fileExists(sessionDir, responseRel) {
		return &MissingArtifactError{SessionID: state.SessionID, RelPath: responseRel}
	}
	content, err := readSessionFile(sessionDir, responseRel)
	if err != nil {
		return err
	}

	result, err := prof.ProcessResponse(ctx, phase, string(content), sessionDir, state.CurrentIteration)
	if err != nil {
		return pkgerrors.Wrap(err, "orchestrator: profile response processing failed")
	}
	if result.Status == profile.ProcessingFailed {
		return fmt.Errorf("orchestrator: profile rejected response: %s", result.ErrorMessage)
	}

	var newArtifacts []model.Artifact
	if result.WritePlan != nil {
		files := make([]artifact.CodeFile, 0, len(result.WritePlan.Writes))
		for _, w := range result.WritePlan.Writes {
			files = append(files, artifact.CodeFile{Path: w.Path, Content: w.Content})
		}
		extractor := func(string) ([]artifact.CodeFile, error) { return files, nil }
		written, err := svc.ExtractAndWrite(phase, state.CurrentIteration, "", extractor)
		if err != nil {
			return err
		}
		newArtifacts = append(newArtifacts, written...)
	}

	if isRevise {
		copied, err := svc.CopyForward(phase, state.CurrentIteration)
		if err != nil {
			return err
		}
		newArtifacts = append(newArtifacts, copied...)
	}

	state.Artifacts = append(state.Artifacts, newArtifacts...)
	return nil
}

// parseReviewVerdict reads the review response text and extracts a
// PASS/FAIL verdict. An ambiguous response defaults to FAIL, mirroring
// the gate's "ambiguous → safe default" rule for approval decisions.
func parseReviewVerdict(state *model.WorkflowState, sessionDir string) (model.Verdict, error) {
	responseRel := prompt.ResponsePath(model.PhaseReview, state.CurrentIteration)
	data, err := readSessionFile(sessionDir, responseRel)
	if err != nil {
		return "", err
	}
	text := string(data)
	upper := toUpper(text)
	switch {
	case containsWord(upper, "FAIL"):
		return model.VerdictFail, nil
	case containsWord(upper, "PASS"):
		return model.VerdictPass, nil
	default:
		return model.VerdictFail, nil
	}
}

// executeAction performs the post-transition side effect named by the
// transition result (§4.2 step 6).
func (o *Orchestrator) executeAction(ctx context.Context, action model.Action, prof profile.Profile, state *model.WorkflowState, sessionDir string) error {
	switch action {
	case model.ActionGeneratePrompt:
		return o.writeNextPrompt(ctx, prof, state, state.Phase)
	case model.ActionApprovePlanResponse, model.ActionApproveGenerateResponse:
		return o.writeNextPrompt(ctx, prof, state, state.Phase)
	case model.ActionApproveReviewResponse:
		if state.Phase == model.PhaseRevise {
			state.CurrentIteration++
			return o.writeNextPrompt(ctx, prof, state, model.PhaseRevise)
		}
		return nil // COMPLETE: nothing further to write
	case model.ActionApproveReviseResponse:
		return o.writeNextPrompt(ctx, prof, state, model.PhaseReview)
	case model.ActionInvokeProvider:
		return o.invokeProvider(ctx, state, sessionDir)
	case model.ActionCancel, model.ActionNone:
		return nil
	default:
		return nil
	}
}

// invokeProvider runs the AI provider bound to the session against the
// just-approved PROMPT file and writes the RESPONSE file, per §4.6
// "returning text causes the engine to write the response file". A
// provider returning nil text signals manual mode: the engine leaves the
// RESPONSE stage awaiting a hand-placed file.
func (o *Orchestrator) invokeProvider(ctx context.Context, state *model.WorkflowState, sessionDir string) error {
	aiKey := state.Providers["ai"]
	if aiKey == "" {
		return nil
	}
	p, err := o.AIProviders.Create(aiKey)
	if err != nil {
		return pkgerrors.Wrap(err, "orchestrator: resolving AI provider")
	}

	promptRel := prompt.PromptPath(state.Phase, state.CurrentIteration)
	promptText, err := readSessionFile(sessionDir, promptRel)
	if err != nil {
		return err
	}

	gctx := provider.GenerateContext{
		SessionID: state.SessionID, Phase: string(state.Phase),
		Iteration: state.CurrentIteration,
	}
	resp, err := p.Generate(ctx, string(promptText), gctx)
	if err != nil {
		return pkgerrors.Wrap(err, "orchestrator: AI provider invocation failed")
	}
	if resp == nil {
		return nil
	}

	responseRel := prompt.ResponsePath(state.Phase, state.CurrentIteration)
	return writeSessionFile(sessionDir, responseRel, *resp)
}

// regeneratePrompt asks the profile for an alternate PROMPT body seeded
// with feedback/suggested content, re-renders it through the Prompt
// Assembler, and overwrites the PROMPT file in place (§4.4 "Retry loop
// for PROMPT stages").
func (o *Orchestrator) regeneratePrompt(ctx context.Context, prof profile.Profile, state *model.WorkflowState, sessionDir, feedback string) error {
	body, err := prof.RegeneratePrompt(ctx, state.Phase, profile.PromptContext{
		SessionID: state.SessionID,
		Iteration: state.CurrentIteration,
		Context:   state.Context,
		Feedback:  feedback,
		Suggested: state.SuggestedContent,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "orchestrator: profile prompt regeneration failed")
	}

	var fsAbility provider.FilesystemAbility = provider.FSNone
	if aiKey := state.Providers["ai"]; aiKey != "" {
		if p, err := o.AIProviders.Create(aiKey); err == nil {
			fsAbility = p.Metadata().FilesystemAbility
		}
	}

	responseRel := prompt.ResponsePath(state.Phase, state.CurrentIteration)
	rendered := prompt.Assemble(sessionDir, state.SessionID, body, fsAbility, responseRel)

	promptRel := prompt.PromptPath(state.Phase, state.CurrentIteration)
	if err := writeSessionFile(sessionDir, promptRel, rendered); err != nil {
		return err
	}

	svc := artifact.New(sessionDir)
	return svc.HashPromptIfEnabled(state, promptRel, o.HashPrompts)
}

// writeNextPrompt renders and writes the PROMPT file for phase via the
// profile and the Prompt Assembler.
func (o *Orchestrator) writeNextPrompt(ctx context.Context, prof profile.Profile, state *model.WorkflowState, phase model.Phase) error {
	body, err := prof.Prompt(ctx, phase, profile.PromptContext{
		SessionID: state.SessionID,
		Iteration: state.CurrentIteration,
		Context:   state.Context,
		Feedback:  state.ApprovalFeedback,
		Suggested: state.SuggestedContent,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "orchestrator: profile prompt generation failed")
	}

	aiProviderKey := state.Providers["ai"]
	var fsAbility provider.FilesystemAbility = provider.FSNone
	if aiProviderKey != "" {
		if p, err := o.AIProviders.Create(aiProviderKey); err == nil {
			fsAbility = p.Metadata().FilesystemAbility
		}
	}

	sessionDir := o.Store.SessionDir(state.SessionID)
	responseRel := prompt.ResponsePath(phase, state.CurrentIteration)
	rendered := prompt.Assemble(sessionDir, state.SessionID, body, fsAbility, responseRel)

	promptRel := prompt.PromptPath(phase, state.CurrentIteration)
	if err := writeSessionFile(sessionDir, promptRel, rendered); err != nil {
		return err
	}
	state.Stage = model.StagePrompt

	svc := artifact.New(sessionDir)
	return svc.HashPromptIfEnabled(state, promptRel, o.HashPrompts)
}

// runGate builds the file bundle for the current stage and evaluates the
// approval provider bound to the current stage configuration.
func (o *Orchestrator) runGate(ctx context.Context, state *model.WorkflowState, stageCfg model.StageConfig, sessionDir string) (model.ApprovalResult, error) {
	files, order, err := o.buildBundle(state, sessionDir)
	if err != nil {
		return model.ApprovalResult{}, err
	}

	actx := provider.ApprovalContext{
		SessionID:      state.SessionID,
		Iteration:      state.CurrentIteration,
		AllowRewrite:   stageCfg.AllowRewrite,
		PlanFile:       "plan.md",
		ReviewFile:     prompt.ResponsePath(model.PhaseReview, state.CurrentIteration),
		SessionDir:     sessionDir,
		ApproverConfig: stageCfg.ApproverConfig,
		Files:          gate.BuildBundleOrdered(files, order),
	}

	approvalKey := stageCfg.ApprovalProvider
	if state.ExecutionMode == "automated" && approvalKey == "manual" {
		approvalKey = "skip"
	}

	return gate.Evaluate(ctx, o.ApprovalProvs, approvalKey, actx)
}

// buildBundle returns the path→content map (and a stable ordering) for
// whatever files the current stage's approver needs to see: the rendered
// PROMPT when approving a PROMPT stage (approving "send this"), or the
// RESPONSE file when approving a RESPONSE stage (approving "accept this").
func (o *Orchestrator) buildBundle(state *model.WorkflowState, sessionDir string) (map[string]string, []string, error) {
	var rel string
	switch state.Stage {
	case model.StagePrompt:
		rel = prompt.PromptPath(state.Phase, state.CurrentIteration)
	default:
		rel = prompt.ResponsePath(state.Phase, state.CurrentIteration)
	}
	if !fileExists(sessionDir, rel) {
		return nil, nil, &MissingArtifactError{SessionID: state.SessionID, RelPath: rel}
	}
	data, err := readSessionFile(sessionDir, rel)
	if err != nil {
		return nil, nil, err
	}
	return map[string]string{rel: string(data)}, []string{rel}, nil
}

func (o *Orchestrator) applySuggestedContent(state *model.WorkflowState, stageCfg model.StageConfig, sessionDir string, result model.ApprovalResult) error {
	if !stageCfg.AllowRewrite || result.SuggestedContent == "" {
		return nil
	}
	var rel string
	switch state.Stage {
	case model.StagePrompt:
		rel = prompt.PromptPath(state.Phase, state.CurrentIteration)
	default:
		rel = prompt.ResponsePath(state.Phase, state.CurrentIteration)
	}
	return writeSessionFile(sessionDir, rel, result.SuggestedContent)
}

func (o *Orchestrator) reinvokeProvider(ctx context.Context, prof profile.Profile, state *model.WorkflowState, stageCfg model.StageConfig, sessionDir, feedback string) error {
	aiKey := stageCfg.AIProvider
	if aiKey == "" {
		aiKey = state.Providers["ai"]
	}
	if aiKey == "" {
		return nil // manual mode: user places the response file themselves
	}
	p, err := o.AIProviders.Create(aiKey)
	if err != nil {
		return pkgerrors.Wrap(err, "orchestrator: resolving AI provider for retry")
	}

	promptRel := prompt.PromptPath(state.Phase, state.CurrentIteration)
	promptText, err := readSessionFile(sessionDir, promptRel)
	if err != nil {
		return err
	}

	gctx := provider.GenerateContext{
		SessionID: state.SessionID, Phase: string(state.Phase),
		Iteration: state.CurrentIteration, Feedback: feedback,
	}
	resp, err := p.Generate(ctx, string(promptText), gctx)
	if err != nil {
		return pkgerrors.Wrap(err, "orchestrator: AI provider retry invocation failed")
	}
	if resp == nil {
		return nil // manual mode
	}

	responseRel := prompt.ResponsePath(state.Phase, state.CurrentIteration)
	return writeSessionFile(sessionDir, responseRel, *resp)
}

// Reject records feedback on a pending RESPONSE stage and clears
// pending_approval, leaving (phase, stage) unchanged.
func (o *Orchestrator) Reject(ctx context.Context, sessionID, feedback string) (*model.WorkflowState, error) {
	state, err := o.Store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := transition.Lookup(state.Phase, state.Stage, model.CmdReject, state.PendingApproval); err != nil {
		return nil, err
	}
	state.ApprovalFeedback = feedback
	state.PendingApproval = false
	state.LastError = ""
	if _, err := o.Store.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Retry re-runs the current stage with feedback injected, clearing the
// stale response artifact and re-invoking the AI provider.
func (o *Orchestrator) Retry(ctx context.Context, sessionID, feedback string) (*model.WorkflowState, error) {
	state, err := o.Store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := transition.Lookup(state.Phase, state.Stage, model.CmdRetry, state.PendingApproval); err != nil {
		return nil, err
	}

	prof, err := o.Profiles.Create(state.Profile)
	if err != nil {
		return nil, err
	}
	stageCfg := o.Config.Resolve(state.Phase, state.Stage)
	sessionDir := o.Store.SessionDir(sessionID)

	state.ApprovalFeedback = feedback
	state.PendingApproval = false
	if abs, err := pathsafe.ValidateForWrite(sessionDir, prompt.ResponsePath(state.Phase, state.CurrentIteration)); err == nil {
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			state.LastError = err.Error()
			o.Store.Save(state)
			return state, pkgerrors.Wrap(err, "orchestrator: clearing stale response")
		}
	}
	if err := o.reinvokeProvider(ctx, prof, state, stageCfg, sessionDir, feedback); err != nil {
		state.LastError = err.Error()
		o.Store.Save(state)
		return state, err
	}
	state.RetryCount++
	state.LastError = ""
	if _, err := o.Store.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Cancel terminates a non-terminal session to CANCELLED.
func (o *Orchestrator) Cancel(ctx context.Context, sessionID string) (*model.WorkflowState, error) {
	state, err := o.Store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	result, err := transition.Lookup(state.Phase, state.Stage, model.CmdCancel, state.PendingApproval)
	if err != nil {
		return nil, err
	}
	state.Phase = result.NextPhase
	state.Stage = result.NextStage
	state.Status = result.StatusOverride
	state.ClearApprovalBookkeeping()
	state.LastError = ""
	state.RecordTransition(time.Now().UTC())

	o.emit(events.WorkflowCancelled, state, "")
	if _, err := o.Store.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Status loads and returns a session's snapshot without mutating it.
func (o *Orchestrator) Status(sessionID string) (*model.WorkflowState, error) {
	return o.Store.Load(sessionID)
}

// List returns every known session id.
func (o *Orchestrator) List() ([]string, error) {
	return o.Store.List()
}

func (o *Orchestrator) emit(t events.Type, state *model.WorkflowState, detail string) {
	if o.Emitter == nil {
		return
	}
	o.Emitter.Emit(events.Event{
		Type: t, SessionID: state.SessionID, Phase: state.Phase,
		Iteration: state.CurrentIteration, Detail: detail,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
