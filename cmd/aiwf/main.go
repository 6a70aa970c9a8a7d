package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/scottcm/aiwf-engine/internal/config"
	"github.com/scottcm/aiwf-engine/internal/events"
	"github.com/scottcm/aiwf-engine/internal/model"
	"github.com/scottcm/aiwf-engine/internal/obslog"
	"github.com/scottcm/aiwf-engine/internal/orchestrator"
	"github.com/scottcm/aiwf-engine/internal/profile"
	"github.com/scottcm/aiwf-engine/internal/profile/generic"
	"github.com/scottcm/aiwf-engine/internal/prompt"
	"github.com/scottcm/aiwf-engine/internal/provider"
	"github.com/scottcm/aiwf-engine/internal/standards"
	"github.com/scottcm/aiwf-engine/internal/store"
	"github.com/scottcm/aiwf-engine/internal/ux"
)

const schemaVersion = 1

func main() {
	app := &cli.Command{
		Name:  "aiwf",
		Usage: "AI-assisted plan/generate/review/revise workflow engine",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "emit a single-line JSON record instead of key=value lines"},
			&cli.StringFlag{Name: "sessions-root", Usage: "sessions directory", Value: defaultSessionsRoot()},
			&cli.StringFlag{Name: "config", Usage: "workflow configuration file"},
		},
		Commands: []*cli.Command{
			initCmd(),
			stepCmd(),
			approveCmd(),
			rejectCmd(),
			retryCmd(),
			cancelCmd(),
			statusCmd(),
			listCmd(),
			validateCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func defaultSessionsRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aiwf/sessions"
	}
	return filepath.Join(home, ".aiwf", "sessions")
}

// buildOrchestrator wires every collaborator from CLI flags. Concrete AI
// providers (claudecli, anthropic) and the generic profile are always
// registered; callers needing additional profiles or providers extend
// this at the point they fork the binary.
func buildOrchestrator(cmd *cli.Command, hashPrompts bool) (*orchestrator.Orchestrator, error) {
	root := cmd.String("sessions-root")
	st, err := store.New(root)
	if err != nil {
		return nil, err
	}

	doc := config.Default()
	if path := cmd.String("config"); path != "" {
		doc, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	logger, err := obslog.New(obslog.Config{Level: "info", JSON: cmd.Bool("json")})
	if err != nil {
		logger = obslog.Nop()
	}

	profiles := profile.NewFactory()
	profiles.Register("generic", generic.New)

	aiProviders := provider.NewAIProviderFactory()
	aiProviders.Register("claude-cli", func() (provider.AIProvider, error) {
		return provider.NewClaudeCLI(""), nil
	})
	aiProviders.Register("anthropic", func() (provider.AIProvider, error) {
		return provider.NewAnthropicProvider("", "claude-sonnet-4-20250514"), nil
	})

	standardsProviders := provider.NewStandardsProviderFactory()
	standardsProviders.Register("none", func() (provider.StandardsProvider, error) {
		return standards.NoneProvider{}, nil
	})
	standardsProviders.Register("files", func() (provider.StandardsProvider, error) {
		return standards.NewFileBundleProvider(cmd.StringSlice("standards-files")), nil
	})

	emitter := events.NewEmitter(logger)
	emitter.Register(events.LoggingObserver{Logger: logger})

	cfgTree := doc.Workflow
	return &orchestrator.Orchestrator{
		Store:         st,
		Profiles:      profiles,
		AIProviders:   aiProviders,
		ApprovalProvs: provider.NewApprovalProviderFactory(),
		Standards:     standardsProviders,
		Config:        &cfgTree,
		Emitter:       emitter,
		HashPrompts:   hashPrompts,
	}, nil
}

func emit(cmd *cli.Command, r *ux.Record) {
	r.Write(os.Stdout, cmd.Bool("json"))
}

// printHumanStatus prints the richer banner/hint output on top of the
// key=value record when not in --json mode. It is a no-op in JSON mode
// since scripts consuming the structured record don't want banner noise
// mixed into stdout.
func printHumanStatus(cmd *cli.Command, state *model.WorkflowState) {
	if cmd.Bool("json") {
		return
	}
	ux.PhaseHeader(os.Stdout, state.Phase, state.Stage, state.CurrentIteration)
	switch {
	case state.Phase.Terminal() && state.Status == model.StatusSuccess:
		ux.Success(os.Stdout, state.SessionID)
	case state.Phase.Terminal() && state.Status == model.StatusCancelled:
		ux.Failure(os.Stdout, "session cancelled")
	case state.LastError != "":
		ux.Failure(os.Stdout, state.LastError)
	case state.PendingApproval:
		ux.PendingApproval(os.Stdout, prompt.ResponsePath(state.Phase, state.CurrentIteration))
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "create a new workflow session",
		ArgsUsage: "--task <description>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "profile", Value: "generic", Usage: "profile name"},
			&cli.StringFlag{Name: "task", Usage: "task description context field", Required: true},
			&cli.StringFlag{Name: "repo-path", Usage: "repo_path context field"},
			&cli.StringFlag{Name: "standards-provider", Usage: "standards provider key"},
			&cli.StringSliceFlag{Name: "standards-files", Usage: "file paths to concatenate when standards-provider=files"},
			&cli.StringFlag{Name: "ai-provider", Value: "claude-cli", Usage: "AI provider key"},
			&cli.StringFlag{Name: "approval-provider", Value: "manual", Usage: "default approval provider key"},
			&cli.StringFlag{Name: "execution-mode", Value: "interactive", Usage: "interactive|automated"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			orc, err := buildOrchestrator(cmd, false)
			if err != nil {
				return err
			}

			sessionID := uuid.NewString()
			opts := orchestrator.InitOptions{
				SessionID:         sessionID,
				Profile:           cmd.String("profile"),
				StandardsProvider: cmd.String("standards-provider"),
				AIProviderKey:     cmd.String("ai-provider"),
				ApprovalProvKey:   cmd.String("approval-provider"),
				ExecutionMode:     cmd.String("execution-mode"),
				Context: map[string]any{
					"task_description": cmd.String("task"),
					"repo_path":        cmd.String("repo-path"),
				},
			}

			state, err := orc.Init(ctx, opts)
			if err != nil {
				return err
			}

			r := ux.StateRecord(schemaVersion, "init", 0, state)
			emit(cmd, r)
			printHumanStatus(cmd, state)
			return nil
		},
	}
}

// stepCmd is the legacy single-step sugar command: it advances exactly
// one transition if the manual response file the current stage expects
// has shown up on disk, otherwise it reports "awaiting response" without
// mutating the session.
func stepCmd() *cli.Command {
	return &cli.Command{
		Name:      "step",
		Usage:     "(legacy) advance one transition if a manual response file has appeared",
		ArgsUsage: "<session-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sessionID := cmd.Args().First()
			if sessionID == "" {
				return fmt.Errorf("session-id argument is required")
			}
			orc, err := buildOrchestrator(cmd, false)
			if err != nil {
				return err
			}

			state, err := orc.Status(sessionID)
			if err != nil {
				return err
			}

			if state.Phase.Terminal() {
				exitCode := 0
				if state.Status == model.StatusCancelled {
					exitCode = 3
				}
				emit(cmd, ux.StateRecord(schemaVersion, "step", exitCode, state))
				if exitCode != 0 {
					os.Exit(exitCode)
				}
				return nil
			}

			sessionDir := orc.Store.SessionDir(sessionID)
			rel := prompt.ResponsePath(state.Phase, state.CurrentIteration)
			if state.Stage == model.StagePrompt {
				rel = prompt.PromptPath(state.Phase, state.CurrentIteration)
			}
			if _, statErr := os.Stat(filepath.Join(sessionDir, rel)); statErr != nil {
				emit(cmd, ux.StateRecord(schemaVersion, "step", 2, state))
				if !cmd.Bool("json") {
					ux.PendingApproval(os.Stdout, rel)
				}
				os.Exit(2)
			}

			newState, err := orc.Approve(ctx, sessionID)
			if err != nil {
				return err
			}
			exitCode := 0
			if newState.Phase.Terminal() && newState.Status == model.StatusCancelled {
				exitCode = 3
			}
			emit(cmd, ux.StateRecord(schemaVersion, "step", exitCode, newState))
			if exitCode != 0 {
				os.Exit(exitCode)
			}
			return nil
		},
	}
}

func approveCmd() *cli.Command {
	return &cli.Command{
		Name:      "approve",
		Usage:     "run the approval gate against the current stage and transition on success",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "hash-prompts", Usage: "record a sha256 of every rendered prompt into prompt_hashes"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sessionID := cmd.Args().First()
			if sessionID == "" {
				return fmt.Errorf("session-id argument is required")
			}
			orc, err := buildOrchestrator(cmd, cmd.Bool("hash-prompts"))
			if err != nil {
				return err
			}
			state, err := orc.Approve(ctx, sessionID)
			if err != nil {
				return err
			}
			emit(cmd, ux.StateRecord(schemaVersion, "approve", 0, state))
			printHumanStatus(cmd, state)
			return nil
		},
	}
}

func rejectCmd() *cli.Command {
	return &cli.Command{
		Name:      "reject",
		Usage:     "record rejection feedback on the pending response",
		ArgsUsage: "<session-id> <feedback...>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) < 2 {
				return fmt.Errorf("session-id and feedback arguments are required")
			}
			orc, err := buildOrchestrator(cmd, false)
			if err != nil {
				return err
			}
			state, err := orc.Reject(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			emit(cmd, ux.StateRecord(schemaVersion, "reject", 0, state))
			if !cmd.Bool("json") {
				ux.RejectionFeedback(os.Stdout, strings.Join(args[1:], " "))
			}
			return nil
		},
	}
}

func retryCmd() *cli.Command {
	return &cli.Command{
		Name:      "retry",
		Usage:     "re-run the current stage with feedback injected",
		ArgsUsage: "<session-id> <feedback...>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) < 1 {
				return fmt.Errorf("session-id argument is required")
			}
			feedback := ""
			if len(args) > 1 {
				feedback = strings.Join(args[1:], " ")
			}
			orc, err := buildOrchestrator(cmd, false)
			if err != nil {
				return err
			}
			state, err := orc.Retry(ctx, args[0], feedback)
			if err != nil {
				return err
			}
			emit(cmd, ux.StateRecord(schemaVersion, "retry", 0, state))
			printHumanStatus(cmd, state)
			return nil
		},
	}
}

func cancelCmd() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "terminate a session to CANCELLED",
		ArgsUsage: "<session-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sessionID := cmd.Args().First()
			if sessionID == "" {
				return fmt.Errorf("session-id argument is required")
			}
			orc, err := buildOrchestrator(cmd, false)
			if err != nil {
				return err
			}
			state, err := orc.Cancel(ctx, sessionID)
			if err != nil {
				return err
			}
			emit(cmd, ux.StateRecord(schemaVersion, "cancel", 0, state))
			return nil
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "inspect a session's current state",
		ArgsUsage: "<session-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sessionID := cmd.Args().First()
			if sessionID == "" {
				return fmt.Errorf("session-id argument is required")
			}
			orc, err := buildOrchestrator(cmd, false)
			if err != nil {
				return err
			}
			state, err := orc.Status(sessionID)
			if err != nil {
				return err
			}
			emit(cmd, ux.StateRecord(schemaVersion, "status", 0, state))
			return nil
		},
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "enumerate known sessions",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			orc, err := buildOrchestrator(cmd, false)
			if err != nil {
				return err
			}
			ids, err := orc.List()
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				r := ux.NewRecord().
					Set("schema_version", schemaVersion).
					Set("command", "list").
					Set("exit_code", 0).
					Set("sessions", ids)
				return r.WriteJSON(os.Stdout)
			}
			ux.SessionList(os.Stdout, ids)
			return nil
		},
	}
}

func validateCmd() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "preflight an ai/standards/all provider configuration",
		ArgsUsage: "ai|standards|all [provider-key]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			kind := cmd.Args().First()
			if kind == "" {
				kind = "all"
			}
			key := cmd.Args().Get(1)

			orc, err := buildOrchestrator(cmd, false)
			if err != nil {
				return err
			}

			var failures []string
			if kind == "ai" || kind == "all" {
				if key == "" {
					key = "claude-cli"
				}
				p, err := orc.AIProviders.Create(key)
				if err != nil {
					failures = append(failures, err.Error())
				} else if err := p.Validate(ctx); err != nil {
					failures = append(failures, fmt.Sprintf("ai provider %q: %v", key, err))
				}
			}
			if kind == "standards" || kind == "all" {
				if key != "" {
					sp, err := orc.Standards.Create(key)
					if err != nil {
						failures = append(failures, err.Error())
					} else if err := sp.Validate(ctx); err != nil {
						failures = append(failures, fmt.Sprintf("standards provider %q: %v", key, err))
					}
				}
			}

			ok := len(failures) == 0
			r := ux.NewRecord().
				Set("schema_version", schemaVersion).
				Set("command", "validate").
				Set("exit_code", boolToExit(ok)).
				Set("ok", ok).
				Set("failures", strings.Join(failures, "; "))
			emit(cmd, r)
			if !ok {
				os.Exit(1)
			}
			return nil
		},
	}
}

func boolToExit(ok bool) int {
	if ok {
		return 0
	}
	return 1
}
