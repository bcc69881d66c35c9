package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"static-server/internal/browser"
	"static-server/internal/config"
	"static-server/internal/logging"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve a directory over HTTP with cross-origin isolation and Prometheus metrics",
		Long: "Serves the files under --root on --port with the headers browsers require " +
			"for SharedArrayBuffer (COOP/COEP) and exposes request metrics on " +
			"--metrics-port. Settings are read from SERVE_* environment variables, then " +
			"the selected profile, then flags.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd.Flags())
			if err != nil {
				return err
			}

			logger := logging.New(out, cfg.LogLevel, cfg.LogFormat)

			ctx, cancel := notifyShutdown(cmd.Context(), out)
			defer cancel()

			return run(ctx, cfg, out, logger, browser.New(!cfg.NoBrowser))
		},
	}

	defaults := config.Config{Root: ".", Port: 8060, MetricsPort: 8000, ShutdownTimeout: 10 * time.Second}

	flags := cmd.Flags()
	flags.IntP("port", "p", defaults.Port, "Port for the file server")
	flags.IntP("metrics-port", "m", defaults.MetricsPort, "Port for the Prometheus metrics endpoint")
	flags.StringP("root", "r", defaults.Root, "Directory to serve")
	flags.BoolP("no-browser", "n", false, "Do not open a browser window")
	flags.String("open-path", "", "Path opened in the browser, relative to the site root")
	flags.Int("max-conn", 0, "Maximum simultaneous file-server connections (0 = unlimited)")
	flags.Duration("shutdown-timeout", defaults.ShutdownTimeout, "How long to wait for in-flight requests on shutdown (0 = forever)")
	flags.Bool("game-metrics", false, "Expose game counters and accept POST /events on the metrics port")
	flags.String("log-level", "INFO", "Log level: DEBUG, INFO, WARN or ERROR")
	flags.String("profile", config.DefaultProfile, "Named settings profile")
	flags.String("config", "", "TOML or YAML file with additional profiles")

	return cmd
}

// buildConfig layers defaults, environment, profile and explicitly set flags,
// in that order, and validates the result.
func buildConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	var pf *config.ProfileFile
	if path, _ := flags.GetString("config"); path != "" {
		if pf, err = config.LoadProfileFile(path); err != nil {
			return config.Config{}, err
		}
	}

	name, _ := flags.GetString("profile")
	profile, err := config.LookupProfile(pf, name)
	if err != nil {
		return config.Config{}, err
	}
	cfg = profile.Apply(cfg)

	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("metrics-port") {
		cfg.MetricsPort, _ = flags.GetInt("metrics-port")
	}
	if flags.Changed("root") {
		cfg.Root, _ = flags.GetString("root")
	}
	if flags.Changed("no-browser") {
		cfg.NoBrowser, _ = flags.GetBool("no-browser")
	}
	if flags.Changed("open-path") {
		cfg.OpenPath, _ = flags.GetString("open-path")
	}
	if flags.Changed("max-conn") {
		cfg.MaxConnections, _ = flags.GetInt("max-conn")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.ShutdownTimeout, _ = flags.GetDuration("shutdown-timeout")
	}
	if flags.Changed("game-metrics") {
		cfg.GameMetrics, _ = flags.GetBool("game-metrics")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// notifyShutdown returns a context that is cancelled on SIGINT or SIGTERM,
// after the shutdown notice has been written to out.
func notifyShutdown(parent context.Context, out io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			fmt.Fprintf(out, "\nReceived signal %s. Shutting down gracefully...\n", signalNumber(sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func signalNumber(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		return fmt.Sprintf("%d", int(s))
	}
	return sig.String()
}
