// Package ux renders command output to the terminal: §6's two output
// modes (text "key=value" lines and single-line JSON records) plus a
// richer human status display.
//
// Grounded on the teacher's internal/ux (output.go's timestamped,
// colorized headers; status.go's phase-progress listing), replacing its
// raw ANSI escape constants with github.com/charmbracelet/lipgloss
// styles — the library every terminal-output-heavy repo in the pack
// (Raven, codenerd) reaches for instead of hand-rolled escape codes.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/scottcm/aiwf-engine/internal/model"
)

var (
	boldStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	cyanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Record is an ordered set of output fields for one command result.
// Order is preserved in text mode; JSON mode marshals the same pairs as
// an object, omitting empty values per §6 ("omitting null fields").
type Record struct {
	fields []field
}

type field struct {
	key   string
	value any
}

// NewRecord starts an empty Record.
func NewRecord() *Record { return &Record{} }

// Set appends (or, if key already present, overwrites) a field.
func (r *Record) Set(key string, value any) *Record {
	for i, f := range r.fields {
		if f.key == key {
			r.fields[i].value = value
			return r
		}
	}
	r.fields = append(r.fields, field{key, value})
	return r
}

// WriteText emits "key=value" lines, one per field, skipping empty
// string/zero values.
func (r *Record) WriteText(w io.Writer) {
	for _, f := range r.fields {
		if isEmptyValue(f.value) {
			continue
		}
		fmt.Fprintf(w, "%s=%v\n", f.key, f.value)
	}
}

// WriteJSON emits a single-line JSON object, omitting empty fields.
func (r *Record) WriteJSON(w io.Writer) error {
	obj := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		if isEmptyValue(f.value) {
			continue
		}
		obj[f.key] = f.value
	}
	enc := json.NewEncoder(w)
	return enc.Encode(obj)
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case int:
		return val == 0
	case bool:
		return false // false is a meaningful value, never omitted
	default:
		return false
	}
}

// Write dispatches to WriteText or WriteJSON based on jsonMode.
func (r *Record) Write(w io.Writer, jsonMode bool) error {
	if jsonMode {
		return r.WriteJSON(w)
	}
	r.WriteText(w)
	return nil
}

// StateRecord builds the standard field set reported for a WorkflowState
// after any orchestrator command, per §6's "command-specific fields".
func StateRecord(schemaVersion int, command string, exitCode int, state *model.WorkflowState) *Record {
	r := NewRecord().
		Set("schema_version", schemaVersion).
		Set("command", command).
		Set("exit_code", exitCode).
		Set("session_id", state.SessionID).
		Set("phase", string(state.Phase)).
		Set("stage", string(state.Stage)).
		Set("status", string(state.Status)).
		Set("current_iteration", state.CurrentIteration).
		Set("pending_approval", state.PendingApproval)
	if state.LastError != "" {
		r.Set("last_error", state.LastError)
	}
	if state.ApprovalFeedback != "" {
		r.Set("approval_feedback", state.ApprovalFeedback)
	}
	return r
}

func timestamp() string { return time.Now().Format("15:04:05") }

// PhaseHeader prints a timestamped banner for entry into a new phase.
func PhaseHeader(w io.Writer, phase model.Phase, stage model.Stage, iteration int) {
	rule := cyanStyle.Render(strings.Repeat("─", 44))
	fmt.Fprintf(w, "\n%s %s\n", dimStyle.Render("["+timestamp()+"]"), rule)
	fmt.Fprintf(w, "%s  %s\n", dimStyle.Render("["+timestamp()+"]"),
		boldStyle.Render(fmt.Sprintf("%s/%s (iteration %d)", phase, stage, iteration)))
	fmt.Fprintf(w, "%s %s\n", dimStyle.Render("["+timestamp()+"]"), rule)
}

// Success prints a terminal-success banner.
func Success(w io.Writer, sessionID string) {
	fmt.Fprintf(w, "\n%s\n\n", successStyle.Render(fmt.Sprintf("✓ session %s complete", sessionID)))
}

// Failure prints an error line.
func Failure(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", errorStyle.Render("✗"), msg)
}

// PendingApproval prints a hint that a manual response/approval is
// awaited.
func PendingApproval(w io.Writer, relPath string) {
	fmt.Fprintf(w, "%s awaiting response at %s\n", warnStyle.Render("⏸"), relPath)
}

// RejectionFeedback prints a rejection's feedback text.
func RejectionFeedback(w io.Writer, feedback string) {
	fmt.Fprintf(w, "%s %s\n", warnStyle.Render("↺ rejected:"), feedback)
}

// SessionList prints a sorted listing of session ids, one per line.
func SessionList(w io.Writer, ids []string) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		fmt.Fprintln(w, id)
	}
}
