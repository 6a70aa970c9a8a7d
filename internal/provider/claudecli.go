package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
)

// ClaudeCLI invokes the `claude` binary as a one-shot subprocess per
// (phase, stage), adapted from the teacher's internal/dispatch/agent.go
// runAgentTurn: same subprocess shape (claude -p <prompt>), here with
// --output-format text and a single non-interactive turn since every
// engine invocation already corresponds to one persisted prompt/response
// artifact pair and needs no cross-turn --resume session.
type ClaudeCLI struct {
	Model          string
	AllowTools     []string
	Timeout        time.Duration
	FilesystemMode FilesystemAbility
}

// NewClaudeCLI returns a ClaudeCLI provider with the teacher's default
// allow-list (file and search tools a generation/review turn needs) and a
// local-write filesystem ability, matching how agent.go already steers
// the CLI to save files directly rather than echo them to stdout.
func NewClaudeCLI(model string) *ClaudeCLI {
	return &ClaudeCLI{
		Model:          model,
		AllowTools:     []string{"Read", "Edit", "Write", "Glob", "Grep"},
		Timeout:        10 * time.Minute,
		FilesystemMode: FSLocalWrite,
	}
}

func (c *ClaudeCLI) Validate(ctx context.Context) error {
	if _, err := exec.LookPath("claude"); err != nil {
		return pkgerrors.Wrap(err, "provider: claude CLI not found on PATH")
	}
	return nil
}

func (c *ClaudeCLI) Metadata() Metadata {
	return Metadata{
		Key:                 "claude-cli",
		FilesystemAbility:   c.FilesystemMode,
		ConnectTimeoutSecs:  30,
		ResponseTimeoutSecs: int(c.Timeout.Seconds()),
	}
}

func (c *ClaudeCLI) Generate(ctx context.Context, prompt string, gctx GenerateContext) (*string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := []string{
		"-p", prompt,
		"--output-format", "text",
		"--session-id", uuid.New().String(),
	}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}
	if len(c.AllowTools) > 0 {
		args = append(args, "--allowedTools")
		args = append(args, c.AllowTools...)
	}

	cmd := exec.CommandContext(ctx, "claude", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code, codeErr := exitCode(err)
	if codeErr != nil {
		return nil, pkgerrors.Wrap(codeErr, "provider: claude CLI invocation failed")
	}
	if code != 0 {
		return nil, &CLIExitError{Code: code, Stderr: stderr.String()}
	}

	text := strings.TrimSpace(stdout.String())
	return &text, nil
}

// exitCode extracts a subprocess exit code, lifted from the teacher's
// internal/dispatch/exitcode.go.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

// CLIExitError reports a non-zero claude CLI exit.
type CLIExitError struct {
	Code   int
	Stderr string
}

func (e *CLIExitError) Error() string {
	return fmt.Sprintf("provider: claude CLI exited %d: %s", e.Code, strings.TrimSpace(e.Stderr))
}
