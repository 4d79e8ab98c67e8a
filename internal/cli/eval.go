package cli

import (
	"github.com/spf13/cobra"

	"github.com/cryguy/jsbridge"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Global bool
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <script>",
		Short: "Evaluate a script and print its result as JSON",
		Long: `Evaluate a script once, service any events that are already due, and
print the completion value as JSON.

Example:
  jsbridge eval '[1, 2, 3].map(x => x * 2)'
  jsbridge eval --global 'var x = 1; x + 1'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return evalScript(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Global, "global", false, "evaluate at global scope")

	return cmd
}

func evalScript(cmd *cobra.Command, opts *EvalOptions, script string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log := opts.logger(cfg, cmd.ErrOrStderr())

	in, err := jsbridge.New(jsbridge.WithConfig(cfg), jsbridge.WithLogger(log))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start interpreter", err)
	}
	defer in.Close()

	mode := jsbridge.ModeDirect
	if opts.Global {
		mode = jsbridge.ModeGlobal
	}
	res, err := in.Eval(script, mode)
	if err != nil {
		return WrapExitError(ExitFailure, "evaluation failed", err)
	}

	for {
		did, err := in.Step(cmd.Context(), jsbridge.AllEvents|jsbridge.DontWait)
		if err != nil {
			return WrapExitError(ExitFailure, "background error", err)
		}
		if !did {
			break
		}
	}
	return writeResult(cmd.OutOrStdout(), res)
}
