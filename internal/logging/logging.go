package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log file written under the log directory.
const FileName = "rxplan.log"

// Options controls the global logger.
type Options struct {
	Verbose bool
	// Dir overrides LOGS_FOLDER. Empty means LOGS_FOLDER, then <binary dir>/logs.
	Dir string
	// Console receives human-readable output; nil means os.Stderr.
	Console io.Writer
}

// Init points the global zerolog logger at the console and a rotating file.
// It runs before config.Load, so it resolves LOGS_FOLDER itself.
func Init(opts Options) error {
	exePath, exeErr := os.Executable()
	if exeErr == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exePath), ".env"))
	}

	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	console := opts.Console
	noColor := true
	if console == nil {
		console = os.Stderr
		noColor = !(isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	}
	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}

	logDir := ResolveDir(opts.Dir, exePath, exeErr)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}
	probe := filepath.Join(logDir, ".write-test")
	if err := os.WriteFile(probe, []byte("test"), 0644); err != nil {
		return fmt.Errorf("log directory %q is not writable: %w", logDir, err)
	}
	_ = os.Remove(probe)

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, FileName),
		MaxSize:    16, // megabytes
		MaxBackups: 8,
		MaxAge:     90, // days
		Compress:   true,
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(consoleWriter, fileWriter)).
		With().
		Timestamp().
		Logger()
	return nil
}

// ResolveDir picks the log directory: explicit, LOGS_FOLDER, next to the binary, then ./logs.
func ResolveDir(explicit, exePath string, exeErr error) string {
	if explicit != "" {
		return explicit
	}
	if dir := os.Getenv("LOGS_FOLDER"); dir != "" {
		return dir
	}
	if exeErr == nil && exePath != "" {
		return filepath.Join(filepath.Dir(exePath), "logs")
	}
	return "logs"
}
