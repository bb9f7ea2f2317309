package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/livepush/livepush/internal/config"
	"github.com/livepush/livepush/internal/mirror"
	"github.com/livepush/livepush/internal/remote"
	"github.com/livepush/livepush/internal/version"
)

const configFileName = "config"

var (
	home, _  = os.UserHomeDir()
	logLevel = new(slog.LevelVar)

	green = color.New(color.FgHiGreen).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "livepush [flags] target...",
	Short:   "Mirror local paths onto remote hosts in near-real-time",
	Version: version.Detailed(),
	Args:    cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: run,
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringArrayP("mirror", "m", nil, "local:remote[:flags] mapping, repeatable (flag 'd' deletes remote-only files)")
	rootCmd.Flags().BoolP("init", "i", false, "run a full reconciliation pass before monitoring")
	rootCmd.Flags().BoolP("dry-run", "n", false, "log mutating remote operations instead of executing them")
	rootCmd.Flags().IntP("workers", "j", 4, "concurrent operations per target")
	rootCmd.Flags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.Flags().StringP("ssh-user", "l", "", "ssh login user (defaults to the current user)")
	rootCmd.Flags().Bool("insecure-host-key", false, "skip known_hosts verification")
}

func run(cmd *cobra.Command, args []string) error {
	opts := &config.Options{
		Mirrors:         viper.GetStringSlice("mirror"),
		Targets:         args,
		InitSync:        viper.GetBool("init"),
		DryRun:          viper.GetBool("dry-run"),
		Workers:         viper.GetInt("workers"),
		Verbose:         viper.GetBool("verbose"),
		SSHUser:         viper.GetString("ssh-user"),
		InsecureHostKey: viper.GetBool("insecure-host-key"),
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	// configuration errors are fatal before any remote contact
	descs, err := opts.Descriptors()
	if err != nil {
		return err
	}

	// all good now
	cmd.SilenceUsage = true
	if opts.Verbose {
		logLevel.Set(slog.LevelDebug)
	}
	showHeader()

	ctx := cmd.Context()
	group, err := connectTargets(ctx, opts)
	if err != nil {
		return err
	}
	defer group.Close()

	engine := mirror.NewEngine(group, descs)

	if opts.InitSync {
		if err := engine.InitSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
			// per-target failures: keep monitoring, the next pass converges
			slog.Error("initial sync", "error", err)
		}
	}

	err = engine.Watch(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println(green("interrupted, bye!"))
		if opts.Verbose {
			slog.Debug("shutdown", "cause", err)
		}
		return nil
	}
	return err
}

func connectTargets(ctx context.Context, opts *config.Options) (*remote.Group, error) {
	sshOpts := &remote.SSHOptions{
		User:            opts.SSHUser,
		InsecureHostKey: opts.InsecureHostKey,
	}

	targets := make([]*remote.Target, 0, len(opts.Targets))
	for _, host := range opts.Targets {
		runner, err := remote.DialSSH(ctx, host, sshOpts)
		if err != nil {
			for _, t := range targets {
				_ = t.Close()
			}
			return nil, fmt.Errorf("connect %s: %w", host, err)
		}
		slog.Info("connected", "host", host)
		targets = append(targets, &remote.Target{
			Host:    host,
			Runner:  runner,
			Workers: opts.Workers,
			DryRun:  opts.DryRun,
			Verbose: opts.Verbose,
		})
	}
	return remote.NewGroup(targets), nil
}

func loadConfig(cmd *cobra.Command) error {
	viper.AddConfigPath(filepath.Join(home, ".config/livepush"))
	viper.SetConfigName(configFileName)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	viper.SetEnvPrefix("LIVEPUSH")
	viper.AutomaticEnv()

	return nil
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Printf("livepush %s\n", version.Short())
}

func main() {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
