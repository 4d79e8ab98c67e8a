package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/cryguy/jsbridge"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Window bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a script until it quits",
		Long: `Evaluate a script file at global scope, then service its timers, idle
callbacks and window events until the script calls quit(), closes the
window, a background error escapes, or the process is interrupted.

TypeScript and ES module files are transformed first; a .br suffix marks
a brotli-compressed file.

Example:
  jsbridge run app.js
  jsbridge run --window ui.ts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Window, "window", false, "load the window object")

	return cmd
}

func runScript(cmd *cobra.Command, opts *RunOptions, path string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("window") {
		cfg.Window = opts.Window
	}
	log := opts.logger(cfg, cmd.ErrOrStderr())

	in, err := jsbridge.New(jsbridge.WithConfig(cfg), jsbridge.WithLogger(log))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start interpreter", err)
	}
	defer in.Close()

	if err := in.RegisterCommand("quit", in.Quit); err != nil {
		return WrapExitError(ExitFailure, "failed to register quit", err)
	}

	log.Debug("loading script", "path", path)
	if _, err := in.EvalFile(path); err != nil {
		if jsbridge.IsKind(err, jsbridge.KindUsage) {
			return WrapExitError(ExitCommandError, "failed to load script", err)
		}
		return WrapExitError(ExitFailure, "script failed", err)
	}

	ctx, cancel := signalContext(cmd, log)
	defer cancel()

	err = in.RunUntilQuit(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "background error", err)
	}
	log.Debug("loop stopped")
	return nil
}
