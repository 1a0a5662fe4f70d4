package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/Travis-Britz/dnspipe"
)

var (
	cfgPath string
	cfg     *dnspipe.Config
)

var rootCmd = &cobra.Command{
	Use:           "dnspiped",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "dnspiped keeps DNS records in sync with the addresses this host sees",
}

var runCmd = &cobra.Command{
	Use:           "run",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Starts the update daemon",
	RunE: func(_ *cobra.Command, _ []string) error {
		reg := dnspipe.DefaultRegistry()
		updaters, err := cfg.Build(reg)
		if err != nil {
			return err
		}
		if len(updaters) == 0 {
			return errors.New("no updaters configured; nothing to do")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return dnspipe.RunDaemon(ctx, updaters, cfg.CheckInterval)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(
		initConfig,
		initLogger,
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgPath, "cfg", "", "config file")

	rootCmd.AddCommand(
		runCmd,
		setupCmd,
	)
}

func initConfig() {
	paths := defaultConfigPaths()
	if cfgPath != "" {
		paths = []string{cfgPath}
	}

	var err error
	cfg, err = dnspipe.LoadConfig(paths...)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "unable to load config: %v\n", err)
		os.Exit(1)
	}
}

func defaultConfigPaths() []string {
	var paths []string
	for _, p := range []string{"dnspipe.yaml", "/etc/dnspipe.yaml"} {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

func initLogger() {
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
