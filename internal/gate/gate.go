// Package gate implements the Approval Gate (§4.4): resolving an
// approval provider, building its file bundle, invoking it, and parsing
// a three-way APPROVED/REJECTED/PENDING decision out of its response.
//
// Grounded on the original Python's aiwf/application/approval_handler.py
// for the phase-to-file-bundle mapping, and on the teacher's
// internal/dispatch/gate.go for the shape of a text-response approval
// step (prompt, read a line, branch on it) — generalized here from a
// single fixed y/feedback prompt to the full three-marker grammar the
// spec requires for AI-wrapped approvers.
package gate

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/scottcm/aiwf-engine/internal/model"
	"github.com/scottcm/aiwf-engine/internal/provider"
)

const (
	// maxFileBytes truncates any single bundled file beyond this size.
	maxFileBytes = 64 * 1024
	// maxBundleBytes truncates the aggregate bundle beyond this size.
	maxBundleBytes = 256 * 1024

	truncationMarker = "\n... [truncated]\n"

	emptyFeedback = "Empty or invalid response from AI provider"
)

// Bundle is the path→content map the gate hands to an approval provider,
// already size-truncated per file and in aggregate.
type Bundle map[string]string

// BuildBundle truncates each file to maxFileBytes and then, if the
// aggregate still exceeds maxBundleBytes, truncates later files further
// (in map iteration is non-deterministic in Go, so callers that care
// about which files survive should pass files in priority order via
// BuildBundleOrdered).
func BuildBundle(files map[string]string) Bundle {
	ordered := make([]string, 0, len(files))
	for k := range files {
		ordered = append(ordered, k)
	}
	return BuildBundleOrdered(files, ordered)
}

// BuildBundleOrdered truncates files per-file at maxFileBytes, then
// drops/truncates trailing entries (in the order given) once the running
// total exceeds maxBundleBytes.
func BuildBundleOrdered(files map[string]string, order []string) Bundle {
	out := make(Bundle, len(order))
	total := 0
	for _, path := range order {
		content, ok := files[path]
		if !ok {
			continue
		}
		if len(content) > maxFileBytes {
			content = content[:maxFileBytes] + truncationMarker
		}
		if total+len(content) > maxBundleBytes {
			remaining := maxBundleBytes - total
			if remaining <= 0 {
				break
			}
			content = content[:remaining] + truncationMarker
		}
		out[path] = content
		total += len(content)
	}
	return out
}

// Evaluate runs one approval-gate pass: resolve the provider, invoke it,
// and parse its response into a model.ApprovalResult. The caller supplies
// the already-built ApprovalContext (with Files populated via
// BuildBundle/BuildBundleOrdered).
func Evaluate(ctx context.Context, factory *provider.ApprovalProviderFactory, providerKey string, actx provider.ApprovalContext) (model.ApprovalResult, error) {
	p, err := factory.Create(providerKey)
	if err != nil {
		return model.ApprovalResult{}, pkgerrors.Wrap(err, "gate: resolving approval provider")
	}

	resp, err := p.Evaluate(ctx, actx)
	if err != nil {
		return model.ApprovalResult{}, pkgerrors.Wrap(err, "gate: approval provider invocation failed")
	}

	if resp.Decision != nil {
		return builtinResult(*resp.Decision)
	}

	return parseThreeWay(resp.RawText, actx.AllowRewrite)
}

func builtinResult(d provider.Decision) (model.ApprovalResult, error) {
	switch d {
	case provider.Approved:
		return model.ApprovalResult{Decision: model.DecisionApproved}, nil
	case provider.Pending:
		return model.ApprovalResult{Decision: model.DecisionPending}, nil
	case provider.Rejected:
		return model.NewApprovalResult(model.DecisionRejected, emptyFeedback, "")
	default:
		return model.ApprovalResult{}, fmt.Errorf("gate: unrecognized built-in decision %q", d)
	}
}

var decisionLinePrefixes = []string{"DECISION:", "decision:"}

// parseThreeWay implements §4.4 step 5: a DECISION: line wins if
// present; otherwise a keyword scan; otherwise REJECTED with
// parse-failure feedback. FEEDBACK: and (when allowRewrite)
// SUGGESTED_CONTENT: are then pulled out of the remaining text.
func parseThreeWay(raw string, allowRewrite bool) (model.ApprovalResult, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return model.NewApprovalResult(model.DecisionRejected, emptyFeedback, "")
	}

	decision, ok := findDecisionLine(trimmed)
	if !ok {
		decision, ok = keywordScan(trimmed)
	}
	if !ok {
		feedback := "Could not determine approval decision: response contained no DECISION: line or recognizable keyword"
		return model.NewApprovalResult(model.DecisionRejected, feedback, "")
	}

	feedback := extractSection(trimmed, "FEEDBACK:")
	var suggested string
	if allowRewrite {
		suggested = extractSection(trimmed, "SUGGESTED_CONTENT:")
	}

	if decision == model.DecisionRejected && strings.TrimSpace(feedback) == "" {
		feedback = emptyFeedback
	}

	return model.NewApprovalResult(decision, feedback, suggested)
}

func findDecisionLine(text string) (model.ApprovalDecision, bool) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		upper := strings.ToUpper(line)
		for _, prefix := range decisionLinePrefixes {
			up := strings.ToUpper(prefix)
			if strings.HasPrefix(upper, up) {
				value := strings.ToUpper(strings.TrimSpace(line[len(prefix):]))
				switch {
				case strings.HasPrefix(value, "APPROVED"):
					return model.DecisionApproved, true
				case strings.HasPrefix(value, "REJECTED"):
					return model.DecisionRejected, true
				}
			}
		}
	}
	return "", false
}

func keywordScan(text string) (model.ApprovalDecision, bool) {
	upper := strings.ToUpper(text)
	approved := strings.Contains(upper, "APPROVED")
	rejected := strings.Contains(upper, "REJECTED")
	switch {
	case approved && !rejected:
		return model.DecisionApproved, true
	case rejected && !approved:
		return model.DecisionRejected, true
	default:
		return "", false
	}
}

// sectionMarkers are the recognized markers that terminate a FEEDBACK:
// or SUGGESTED_CONTENT: section when one follows the other.
var sectionMarkers = []string{"DECISION:", "FEEDBACK:", "SUGGESTED_CONTENT:"}

// extractSection returns the text following "<marker>" up to the next
// recognized marker (or end of response).
func extractSection(text, marker string) string {
	upper := strings.ToUpper(text)
	idx := strings.Index(upper, strings.ToUpper(marker))
	if idx == -1 {
		return ""
	}
	start := idx + len(marker)

	end := len(text)
	for _, m := range sectionMarkers {
		if m == marker {
			continue
		}
		if next := strings.Index(upper[start:], strings.ToUpper(m)); next != -1 {
			if start+next < end {
				end = start + next
			}
		}
	}
	return strings.TrimSpace(text[start:end])
}
