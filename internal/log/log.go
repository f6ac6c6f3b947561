package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/OpenCHAMI/wattbox/internal/util"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is the flag value for --log-level and maps directly onto a
// zerolog.Level.
type LogLevel string

const (
	TRACE    LogLevel = "trace"
	DEBUG    LogLevel = "debug"
	INFO     LogLevel = "info"
	WARN     LogLevel = "warn"
	ERROR    LogLevel = "error"
	DISABLED LogLevel = "disabled"
)

var Levels = []LogLevel{TRACE, DEBUG, INFO, WARN, ERROR, DISABLED}

// LogFile is the open --log-file, if any.
var LogFile *os.File

func (ll LogLevel) String() string {
	return string(ll)
}

func (ll *LogLevel) Set(v string) error {
	if _, err := toZerolog(LogLevel(v)); err != nil {
		return err
	}
	*ll = LogLevel(v)
	return nil
}

func (ll LogLevel) Type() string {
	return "LogLevel"
}

func toZerolog(v LogLevel) (zerolog.Level, error) {
	switch v {
	case TRACE:
		return zerolog.TraceLevel, nil
	case DEBUG:
		return zerolog.DebugLevel, nil
	case INFO:
		return zerolog.InfoLevel, nil
	case WARN:
		return zerolog.WarnLevel, nil
	case ERROR:
		return zerolog.ErrorLevel, nil
	case DISABLED:
		return zerolog.Disabled, nil
	}
	names := make([]string, 0, len(Levels))
	for _, l := range Levels {
		names = append(names, string(l))
	}
	return zerolog.NoLevel, fmt.Errorf("must be one of %s", strings.Join(names, ", "))
}

// InitWithLogLevel replaces the global zerolog logger. Output goes to stderr
// and, when logPath is set, is also appended to that file.
func InitWithLogLevel(logLevel LogLevel, logPath string) error {
	level, err := toZerolog(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"},
	}
	if logPath != "" {
		if err := util.EnsureParentDir(logPath); err != nil {
			return err
		}
		LogFile, err = os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, LogFile)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Caller().
		Logger()
	return nil
}

// Close flushes and closes the log file opened by InitWithLogLevel.
func Close() error {
	if LogFile == nil {
		return nil
	}
	err := LogFile.Close()
	LogFile = nil
	return err
}
