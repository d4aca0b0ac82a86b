package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/sushistage/internal/app"
	"github.com/vovakirdan/sushistage/internal/config"
	"github.com/vovakirdan/sushistage/internal/core"
	applog "github.com/vovakirdan/sushistage/internal/log"
)

type options struct {
	configPath string
	name       string
	overrides  config.Config
	forget     bool
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "sushistage: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "sushistage",
		Short:         "Join and leave chat rooms synced with a real-time server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to config file")
	flags.StringVar(&opts.name, "name", "", "username used when no identity is cached")
	flags.StringVar(&opts.overrides.ServerURL, "server", "", "websocket URL of the real-time server")
	flags.StringVar(&opts.overrides.StatusAddr, "status-addr", "", "listen address of the local status server")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.overrides.IdentityPath, "identity", "", "path of the identity database")
	flags.BoolVar(&opts.forget, "forget", false, "drop the cached identity before logging in")

	return cmd
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	bootLogger := applog.New("info", os.Stderr)

	cfg, path, err := config.Load(bootLogger, opts.configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(opts.overrides)

	logger := applog.New(cfg.LogLevel, os.Stderr)
	logger.Debug().Str("config", path).Msg("configuration loaded")

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}

	if opts.forget {
		if err := application.Forget(ctx); err != nil {
			return fmt.Errorf("forget identity: %w", err)
		}
	}

	in := bufio.NewScanner(stdin)
	user, err := login(ctx, application.Store(), opts.name, in, stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Logged in as %s (%s)\n", user.Name, user.ID)
	fmt.Fprintln(stdout, "Commands: join <room>, leave <room>, rooms, whoami, errors, quit")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A failing worker ends the prompt too.
	runErr := make(chan error, 1)
	go func() {
		err := application.Run(ctx)
		cancel()
		runErr <- err
	}()

	events, unsubscribe := application.Store().Watch(64)
	go watchLoop(ctx, events, stdout)

	commandLoop(ctx, application.Store(), in, stdout)

	unsubscribe()
	cancel()
	return <-runErr
}

// login restores the cached identity or asks for a name.
func login(ctx context.Context, st *core.Store, name string, in *bufio.Scanner, out io.Writer) (core.User, error) {
	if user, found, err := st.Restore(ctx); err != nil || found {
		return user, err
	}

	for strings.TrimSpace(name) == "" {
		fmt.Fprint(out, "name: ")
		if !in.Scan() {
			return core.User{}, fmt.Errorf("no name given")
		}
		name = in.Text()
	}
	return st.Login(ctx, core.User{Name: name})
}
