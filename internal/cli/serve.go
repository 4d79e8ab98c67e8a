package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/cryguy/jsbridge"
	"github.com/cryguy/jsbridge/internal/remote"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr       string
	MaxClients int
	Compress   bool
	Init       string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an interpreter over WebSocket",
		Long: `Start an interpreter, optionally evaluate an init script, and accept
call and eval requests over WebSocket. Requests are queued on the
interpreter's loop and answered as they complete.

Example:
  jsbridge serve --addr 127.0.0.1:8765 --init lib.js`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().IntVar(&opts.MaxClients, "max-clients", 0, "maximum concurrent connections, 0 for no limit")
	cmd.Flags().BoolVar(&opts.Compress, "compress", false, "negotiate permessage-deflate")
	cmd.Flags().StringVar(&opts.Init, "init", "", "script evaluated at global scope before serving")

	return cmd
}

// interpTarget queues remote requests on the interpreter's loop.
type interpTarget struct {
	in *jsbridge.Interp
}

func (t interpTarget) Call(ctx context.Context, args []any) (any, error) {
	return t.in.CallAsync(args...).Wait(ctx)
}

func (t interpTarget) Eval(ctx context.Context, script string, global bool) (any, error) {
	mode := jsbridge.ModeDirect
	if global {
		mode = jsbridge.ModeGlobal
	}
	return t.in.EvalAsync(script, mode).Wait(ctx)
}

func serve(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Remote.Addr = opts.Addr
	}
	if cmd.Flags().Changed("max-clients") {
		cfg.Remote.MaxClients = opts.MaxClients
	}
	if cmd.Flags().Changed("compress") {
		cfg.Remote.Compress = opts.Compress
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
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

	if opts.Init != "" {
		if _, err := in.EvalFile(opts.Init); err != nil {
			return WrapExitError(ExitFailure, "init script failed", err)
		}
	}

	ctx, cancel := signalContext(cmd, log)
	defer cancel()

	srv := remote.NewServer(interpTarget{in: in}, cfg.Remote, log)
	srvErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe(ctx)
		srvErr <- err
		if err != nil {
			in.Quit()
		}
	}()

	loopErr := in.RunUntilQuit(ctx)
	cancel()
	if err := <-srvErr; err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return WrapExitError(ExitFailure, "background error", loopErr)
	}
	return nil
}
