package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"wrapal.click/internal/audio"
	"wrapal.click/internal/config"
	"wrapal.click/internal/fs"
	"wrapal.click/internal/journal"
	"wrapal.click/internal/mpg123"
)

const Version = "0.4.0"

// CLI represents the command-line interface
type CLI struct {
	rootCmd          *cobra.Command
	configFS         afero.Fs
	mediaFS          afero.Fs
	configManager    *config.ConfigManager
	terminalDetector TerminalDetector
	openMpg123       func(backend, path string) (mpg123.Library, error)

	cfg       *config.Config
	journal   *journal.Journal
	logCloser io.Closer
}

// NewCLI creates a CLI over the OS filesystem. Audio sources are opened
// read-only.
func NewCLI() *CLI {
	factory := fs.NewDefaultFactory()
	return NewCLIWithFilesystems(factory.Production(), factory.Media())
}

// NewCLIWithFilesystems creates a CLI that reads configuration from configFS
// and audio sources from mediaFS
func NewCLIWithFilesystems(configFS, mediaFS afero.Fs) *CLI {
	slog.Debug("creating new CLI instance")

	c := &CLI{
		configFS:   configFS,
		mediaFS:    mediaFS,
		openMpg123: audio.OpenMpg123,
	}

	rootCmd := &cobra.Command{
		Use:           "wrapal",
		Short:         "Inspect and decode audio through the wrapal stream layer",
		Long:          "wrapal opens WAVE, Ogg/Vorbis and MPEG audio files as uniform PCM streams and reports their format and decode health.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.prepare(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newProbeCommand(c))
	rootCmd.AddCommand(newDecodeCommand(c))
	rootCmd.AddCommand(newHistoryCommand(c))
	rootCmd.AddCommand(newVersionCommand())

	c.rootCmd = rootCmd
	return c
}

// Run executes the CLI with the given arguments and I/O streams
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	slog.Debug("CLI run started", "args", args)

	defer c.close()

	if len(args) > 0 {
		args = args[1:] // Skip program name
	}
	c.rootCmd.SetArgs(args)
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)

	if err := c.rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		slog.Error("command failed", "error", err)
		return 1
	}
	return 0
}

func (c *CLI) close() {
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			slog.Error("error closing journal", "error", err)
		}
		c.journal = nil
	}
	if c.logCloser != nil {
		c.logCloser.Close()
		c.logCloser = nil
	}
}

// prepare loads configuration and configures logging for a subcommand
func (c *CLI) prepare(cmd *cobra.Command) error {
	if c.configManager == nil {
		c.configManager = config.NewConfigManagerWithFilesystem(c.configFS)
	}

	cfg, err := c.loadAndValidateConfig(cmd)
	if err != nil {
		return err
	}
	c.cfg = cfg

	c.setupLogging(cfg, cmd.ErrOrStderr())
	return nil
}

// loadAndValidateConfig loads configuration from flags and files, applies overrides, and validates
func (c *CLI) loadAndValidateConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = c.configManager.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		cfg, err = c.configManager.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	cfg = c.configManager.ApplyEnvironmentOverrides(cfg)

	if logLevel != "" {
		cfg.LogLevel = logLevel
		slog.Debug("log level override applied", "value", logLevel)
	}

	if err := c.configManager.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogging configures slog on stderr and, when enabled, a rotating log
// file. With a file attached stderr only carries warnings and above.
func (c *CLI) setupLogging(cfg *config.Config, stderrWriter io.Writer) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}

	stderrLevel := level
	handlers := []slog.Handler{}

	if cfg.FileLogging != nil && cfg.FileLogging.Enabled {
		logFilePath := c.configManager.ResolveLogFilePath(cfg.FileLogging.Filename)
		logDir := filepath.Dir(logFilePath)

		if err := os.MkdirAll(logDir, 0755); err != nil {
			slog.Error("failed to create log directory", "path", logDir, "error", err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    cfg.FileLogging.MaxSizeMB,
				MaxBackups: cfg.FileLogging.MaxBackups,
				MaxAge:     cfg.FileLogging.MaxAgeDays,
				Compress:   cfg.FileLogging.Compress,
			}
			c.logCloser = fileWriter
			handlers = append(handlers, slog.NewTextHandler(fileWriter, &slog.HandlerOptions{Level: level}))
			if stderrLevel < slog.LevelWarn {
				stderrLevel = slog.LevelWarn
			}
		}
	}

	handlers = append(handlers, slog.NewTextHandler(stderrWriter, &slog.HandlerOptions{Level: stderrLevel}))
	slog.SetDefault(slog.New(NewMultiLevelHandler(handlers...)))

	slog.Debug("logging setup completed",
		"level", level.String(),
		"stderr_level", stderrLevel.String(),
		"handlers", len(handlers))
}

// openJournal opens the probe journal when enabled. Failures are logged and
// the command continues without recording.
func (c *CLI) openJournal() *journal.Journal {
	if c.journal != nil {
		return c.journal
	}
	if c.cfg == nil || c.cfg.Journal == nil || !c.cfg.Journal.Enabled {
		slog.Debug("journal disabled")
		return nil
	}

	path := c.configManager.ResolveJournalPath(c.cfg.Journal.Path)
	j, err := journal.Open(path)
	if err != nil {
		slog.Warn("failed to open journal, continuing without it", "path", path, "error", err)
		return nil
	}

	slog.Debug("journal opened", "path", path)
	c.journal = j
	return j
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wrapal version %s\n", Version)
		},
	}
}
