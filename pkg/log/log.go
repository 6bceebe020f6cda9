package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger every pkg/log.With* call derives
// from. Init must run before any component calls WithComponent, or the
// zero-value logger (zerolog's disabled default) is used instead.
var Logger zerolog.Logger

// Level is one of the four severities cmd/board's --log-level flag
// accepts.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var zerologLevels = map[Level]zerolog.Level{
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// Config holds the settings Init needs to build the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer // defaults to os.Stdout
}

// Init builds the global Logger from cfg. Unrecognized levels fall back
// to InfoLevel rather than rejecting the config outright, since an
// invalid --log-level value shouldn't keep the board from starting.
func Init(cfg Config) {
	level, ok := zerologLevels[cfg.Level]
	if !ok {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	Logger = zerolog.New(writerFor(cfg)).With().Timestamp().Logger()
}

func writerFor(cfg Config) io.Writer {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.JSONOutput {
		return output
	}
	return zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
}

// WithComponent tags every log line from a package with which component
// emitted it, e.g. "router" or "flush".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTaskID tags log lines scoped to a single task mutation.
func WithTaskID(taskID string) zerolog.Logger {
	return Logger.With().Str("task_id", taskID).Logger()
}

// WithConnectionID tags log lines scoped to one websocket connection's
// lifetime, from upgrade through disconnect.
func WithConnectionID(connID string) zerolog.Logger {
	return Logger.With().Str("connection_id", connID).Logger()
}

// WithColumnID tags log lines scoped to a column-wide operation, such as
// a rebalance.
func WithColumnID(columnID string) zerolog.Logger {
	return Logger.With().Str("column_id", columnID).Logger()
}

func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
