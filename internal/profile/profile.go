// Package profile defines the Profile capability contract (§4.6): the one
// collaborator the engine never extracts content from itself. A profile
// owns prompt generation, response parsing, and its own context schema;
// the engine calls through this interface and trusts the result.
//
// Grounded on the original Python's profile plugin shape (prompt
// generators keyed by phase, a bundle_extractor.extract_files used from
// approval_handler.py) and on the teacher's internal/fileblocks fenced
// "```lang file=path" convention, adopted here as the default extractor
// so a concrete profile has somewhere to start from.
package profile

import (
	"context"

	"github.com/scottcm/aiwf-engine/internal/artifact"
	"github.com/scottcm/aiwf-engine/internal/fileblocks"
	"github.com/scottcm/aiwf-engine/internal/model"
)

// WriteOp is one file a generation/revision response should materialize.
type WriteOp struct {
	Path    string
	Content string
}

// WritePlan is the ordered sequence of files a response parser wants
// written for the current iteration.
type WritePlan struct {
	Writes []WriteOp
}

// ProcessingStatus is the outcome of parsing one response.
type ProcessingStatus string

const (
	ProcessingOK     ProcessingStatus = "ok"
	ProcessingFailed ProcessingStatus = "failed"
)

// ProcessingResult is what a profile's response processor returns.
type ProcessingResult struct {
	Status       ProcessingStatus
	WritePlan    *WritePlan
	Metadata     map[string]any
	ErrorMessage string
}

// PromptContext is the phase-relevant data bag a profile's prompt
// generator receives. Context holds the session's validated init
// context; Feedback/Suggested carry retry-injected content; Previous
// holds prior-phase response text the profile may want to reference
// (e.g. GENERATE's prompt referencing the approved plan).
type PromptContext struct {
	SessionID string
	Iteration int
	Context   map[string]any
	Feedback  string
	Suggested string
	Previous  map[model.Phase]string
}

// Profile is the capability interface a concrete domain profile
// implements.
type Profile interface {
	// Name identifies the profile, used for session.json's profile field
	// and for resolving the profile-specific extractor/schema.
	Name() string

	// Prompt renders the prompt body for one phase. The engine appends
	// its own variable substitution and output-destination instructions
	// afterward (internal/prompt); the profile's return value is pure
	// domain content.
	Prompt(ctx context.Context, phase model.Phase, pctx PromptContext) (string, error)

	// ProcessResponse parses the response text for one phase into a
	// ProcessingResult. sessionDir/iteration are supplied for profiles
	// that need to read sibling files (rare; most only need responseText).
	ProcessResponse(ctx context.Context, phase model.Phase, responseText, sessionDir string, iteration int) (ProcessingResult, error)

	// CanRegeneratePrompts reports whether RegeneratePrompt is meaningful
	// for this profile (§4.4's PROMPT-stage retry loop).
	CanRegeneratePrompts() bool

	// RegeneratePrompt produces an alternate PROMPT body seeded with
	// rejection feedback and, optionally, suggested content. Only called
	// when CanRegeneratePrompts is true.
	RegeneratePrompt(ctx context.Context, phase model.Phase, pctx PromptContext) (string, error)

	// ContextSchema returns the struct pointer used to validate init
	// context via go-playground/validator (internal/ctxschema); a
	// profile with no validation needs returns nil.
	ContextSchema() any

	// DefaultStandardsProviderKey names the standards provider used when
	// init does not specify one explicitly.
	DefaultStandardsProviderKey() string
}

// Factory maps profile names to constructors, mirroring the explicit
// factory pattern used for providers (§9 "Global mutable registries →
// explicit factories").
type Factory struct {
	constructors map[string]func() (Profile, error)
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{constructors: map[string]func() (Profile, error){}}
}

// Register adds a constructor under name.
func (f *Factory) Register(name string, ctor func() (Profile, error)) {
	f.constructors[name] = ctor
}

// Create instantiates the profile registered under name.
func (f *Factory) Create(name string) (Profile, error) {
	ctor, ok := f.constructors[name]
	if !ok {
		return nil, &UnknownProfileError{Name: name}
	}
	return ctor()
}

// UnknownProfileError is returned when no constructor is registered for
// the requested name.
type UnknownProfileError struct {
	Name string
}

func (e *UnknownProfileError) Error() string {
	return "profile: unknown profile " + `"` + e.Name + `"`
}

// FenceExtractor adapts the teacher's fileblocks.Parse (fenced blocks
// annotated "```lang file=path") to the artifact.Extractor signature, so
// any profile can reuse it verbatim for its generation/revision parsing.
func FenceExtractor(responseText string) ([]artifact.CodeFile, error) {
	blocks := fileblocks.Parse(responseText)
	files := make([]artifact.CodeFile, 0, len(blocks))
	for _, b := range blocks {
		files = append(files, artifact.CodeFile{Path: b.Path, Content: b.Content})
	}
	return files, nil
}
