package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stealthrocket/graphdoc/internal/config"
	"github.com/stealthrocket/graphdoc/internal/observability"
)

// version is set at link time with -ldflags "-X main.version=...".
var version = "devel"

// app carries the state shared by the subcommands once the persistent
// flags have been resolved.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "graphdoc",
		Short:         "Inspect and maintain object graph documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: graphdoc.yaml in . or ~/.config/graphdoc)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: console or json")
	flags.String("log-file", "", "also write logs to this file, rotated by size")
	flags.String("compression", "", "compression of binary values: none, lz4 or zstd")
	flags.Int("indent", 0, "spaces per level of written documents, negative for none")
	flags.StringP("output", "o", "", "output format: text or yaml")
	flags.Int("max-depth", 0, "maximum element nesting accepted in documents")

	cmd.AddCommand(
		newInspectCommand(a),
		newRootTypeCommand(a),
		newFormatCommand(a),
		newGenCommand(a),
		newVersionCommand(),
	)
	return cmd
}

var flagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.format",
	"log-file":    "log.file",
	"compression": "compression",
	"indent":      "indent",
	"output":      "output",
	"max-depth":   "max_depth",
}

func (a *app) setup(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = observability.NewLogger(cfg.Log)
	a.logger.Debug("configuration loaded",
		zap.String("config", a.v.ConfigFileUsed()),
		zap.String("compression", cfg.Compression),
		zap.Int("indent", cfg.Indent),
		zap.Int("max_depth", cfg.MaxDepth))
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of graphdoc",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "graphdoc", version)
		},
	}
}
