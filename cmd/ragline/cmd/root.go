// Package cmd provides the CLI commands for ragline.
package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/logging"
	"github.com/ragline/ragline/internal/telemetry"
	"github.com/ragline/ragline/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	cfgFile      string
	dataDirFlag  string
	logLevelFlag string
)

// Profiling flags. The nodes run until signaled, so profiles bracket the
// whole process: CPU and trace from startup, heap at shutdown.
var (
	profileCPU   string
	profileHeap  string
	profileTrace string
	profile      *telemetry.Profile
)

// NewRootCmd creates the root command for the ragline CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragline",
		Short: "Hybrid retrieval over your documents",
		Long: `Ragline answers questions from your own documents using hybrid
retrieval: BM25 keyword search picks anchor chunks, vector search ranks
them semantically, and neighboring chunks are pulled in for context
before an LLM writes a cited answer.

The system runs as three HTTP nodes (ingestd, searchd, queryd) that
share a config file, plus client commands that talk to them. With no
external stores configured everything runs embedded under data_dir.`,
		Example: `  # Start the nodes (each in its own terminal)
  ragline searchd
  ragline ingestd
  ragline queryd

  # Load a document and ask about it
  curl -F file=@manual.pdf localhost:8000/ingest
  ragline ask

  # Check what a node would find at startup
  ragline doctor`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("ragline version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default ./ragline.yaml if present)")
	cmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Base directory for embedded stores and locks")
	cmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&profileHeap, "profile-heap", "", "Write a heap profile to this file on exit")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write an execution trace to this file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	cmd.AddCommand(newIngestdCmd())
	cmd.AddCommand(newSearchdCmd())
	cmd.AddCommand(newQuerydCmd())

	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newMCPCmd())

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startProfiling(_ *cobra.Command, _ []string) error {
	profile = telemetry.NewProfile(profileCPU, profileHeap, profileTrace)
	return profile.Start()
}

func stopProfiling(_ *cobra.Command, _ []string) error {
	if profile == nil {
		return nil
	}
	return profile.Stop()
}

// loadConfig builds the effective configuration for a command run:
// defaults, then the YAML file, then env overrides, then the persistent
// flags, which win over everything.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	return cfg, nil
}

// setupLogging initializes structured logging from the config. The
// returned cleanup flushes and closes the log file, if any.
func setupLogging(cfg *config.Config) (*slog.Logger, func(), error) {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.FilePath = cfg.Logging.File
	if cfg.Logging.MaxSizeMB > 0 {
		lc.MaxSizeMB = cfg.Logging.MaxSizeMB
	}
	if cfg.Logging.MaxFiles > 0 {
		lc.MaxFiles = cfg.Logging.MaxFiles
	}
	return logging.Setup(lc)
}

// nodeURL turns a configured listen address into a base URL the client
// commands can dial. Bare ports bind all interfaces, so dial loopback.
func nodeURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
