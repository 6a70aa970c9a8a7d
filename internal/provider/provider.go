// Package provider defines the external collaborator contracts of §4.6 —
// AI Provider, Approval Provider, and Standards Provider — plus the two
// built-in approval providers the engine always ships (skip, manual) and
// explicit factories for each role, replacing the source's process-wide
// registries per §9 ("Global mutable registries → explicit factories").
package provider

import "context"

// FilesystemAbility describes what an AI provider can do with the local
// filesystem, driving the Prompt Assembler's output-destination
// instructions.
type FilesystemAbility string

const (
	FSLocalWrite FilesystemAbility = "local-write"
	FSLocalRead  FilesystemAbility = "local-read"
	FSWriteOnly  FilesystemAbility = "write-only"
	FSNone       FilesystemAbility = "none"
)

// Metadata describes a concrete AI provider's capabilities.
type Metadata struct {
	Key                string
	FilesystemAbility  FilesystemAbility
	ConnectTimeoutSecs int
	ResponseTimeoutSecs int
}

// GenerateContext carries the per-call context an AI provider needs
// beyond the prompt text itself.
type GenerateContext struct {
	SessionID string
	Phase     string
	Iteration int
	Feedback  string // non-empty on a retry re-invocation
}

// AIProvider is the capability interface concrete AI backends satisfy.
// Returning a nil response signals manual mode: the engine has written
// the prompt file and is waiting for a human to place the response file.
type AIProvider interface {
	Validate(ctx context.Context) error
	Generate(ctx context.Context, prompt string, gctx GenerateContext) (*string, error)
	Metadata() Metadata
}

// AIProviderFactory maps provider keys to constructors, replacing the
// source's global provider registry.
type AIProviderFactory struct {
	constructors map[string]func() (AIProvider, error)
}

// NewAIProviderFactory returns an empty factory; callers register
// constructors explicitly (e.g. from cmd/aiwf at startup).
func NewAIProviderFactory() *AIProviderFactory {
	return &AIProviderFactory{constructors: map[string]func() (AIProvider, error){}}
}

// Register adds a constructor under key, overwriting any existing entry.
func (f *AIProviderFactory) Register(key string, ctor func() (AIProvider, error)) {
	f.constructors[key] = ctor
}

// Create instantiates the provider registered under key.
func (f *AIProviderFactory) Create(key string) (AIProvider, error) {
	ctor, ok := f.constructors[key]
	if !ok {
		return nil, &UnknownProviderError{Kind: "ai", Key: key}
	}
	return ctor()
}

// UnknownProviderError is returned when a factory has no constructor for
// the requested key.
type UnknownProviderError struct {
	Kind string
	Key  string
}

func (e *UnknownProviderError) Error() string {
	return "provider: unknown " + e.Kind + " provider key " + `"` + e.Key + `"`
}

// ApprovalContext is the read-only bundle an Approval Provider receives
// to render its judgment, per §4.4 step 2.
type ApprovalContext struct {
	SessionID    string
	Iteration    int
	AllowRewrite bool
	CriteriaFile string
	PlanFile     string
	ReviewFile   string
	SessionDir   string
	ApproverConfig map[string]any
	// Files is the path→content bundle built by the Approval Gate (§4.4
	// step 3), already truncated where oversized.
	Files map[string]string
}

// ApprovalResponse is what an Approval Provider returns before three-way
// decision parsing: built-ins return a Decision directly; AI-wrapped
// providers return RawText for the gate to parse.
type ApprovalResponse struct {
	// Decision is set by built-in providers (skip → always approved,
	// manual → always pending) that don't need text parsing.
	Decision *Decision
	// RawText is the unparsed response from an AI-wrapped provider.
	RawText string
}

// Decision mirrors model.ApprovalDecision without importing model, so
// this package stays a leaf with no upward dependency on the gate's own
// parsing logic.
type Decision string

const (
	Approved Decision = "APPROVED"
	Rejected Decision = "REJECTED"
	Pending  Decision = "PENDING"
)

// ApprovalProvider is the capability interface approval backends satisfy.
type ApprovalProvider interface {
	Evaluate(ctx context.Context, actx ApprovalContext) (ApprovalResponse, error)
}

// ApprovalProviderFactory maps approval provider keys to constructors.
// "skip" and "manual" are always registered by NewApprovalProviderFactory;
// every other key is expected to resolve to an AI-wrapped provider
// registered by the caller.
type ApprovalProviderFactory struct {
	constructors map[string]func() (ApprovalProvider, error)
}

// NewApprovalProviderFactory returns a factory pre-seeded with the two
// built-ins.
func NewApprovalProviderFactory() *ApprovalProviderFactory {
	f := &ApprovalProviderFactory{constructors: map[string]func() (ApprovalProvider, error){}}
	f.Register("skip", func() (ApprovalProvider, error) { return SkipProvider{}, nil })
	f.Register("manual", func() (ApprovalProvider, error) { return ManualProvider{}, nil })
	return f
}

// Register adds or overwrites a constructor under key. Re-registering
// "skip"/"manual" is allowed (tests substitute fakes this way).
func (f *ApprovalProviderFactory) Register(key string, ctor func() (ApprovalProvider, error)) {
	f.constructors[key] = ctor
}

// Create instantiates the approval provider registered under key.
func (f *ApprovalProviderFactory) Create(key string) (ApprovalProvider, error) {
	ctor, ok := f.constructors[key]
	if !ok {
		return nil, &UnknownProviderError{Kind: "approval", Key: key}
	}
	return ctor()
}

// SkipProvider always approves without looking at content.
type SkipProvider struct{}

func (SkipProvider) Evaluate(ctx context.Context, actx ApprovalContext) (ApprovalResponse, error) {
	d := Approved
	return ApprovalResponse{Decision: &d}, nil
}

// ManualProvider always returns PENDING: the user's next explicit
// approve/reject command is itself the decision.
type ManualProvider struct{}

func (ManualProvider) Evaluate(ctx context.Context, actx ApprovalContext) (ApprovalResponse, error) {
	d := Pending
	return ApprovalResponse{Decision: &d}, nil
}

// StandardsProvider produces the text "standards bundle" materialized
// once at session init (§4.6). Out of scope for redesign per §1, but the
// core calls through this contract.
type StandardsProvider interface {
	Validate(ctx context.Context) error
	Materialize(ctx context.Context) (bundle string, err error)
}

// StandardsProviderFactory maps standards provider keys to constructors.
type StandardsProviderFactory struct {
	constructors map[string]func() (StandardsProvider, error)
}

// NewStandardsProviderFactory returns an empty factory.
func NewStandardsProviderFactory() *StandardsProviderFactory {
	return &StandardsProviderFactory{constructors: map[string]func() (StandardsProvider, error){}}
}

// Register adds a constructor under key.
func (f *StandardsProviderFactory) Register(key string, ctor func() (StandardsProvider, error)) {
	f.constructors[key] = ctor
}

// Create instantiates the standards provider registered under key.
func (f *StandardsProviderFactory) Create(key string) (StandardsProvider, error) {
	ctor, ok := f.constructors[key]
	if !ok {
		return nil, &UnknownProviderError{Kind: "standards", Key: key}
	}
	return ctor()
}
