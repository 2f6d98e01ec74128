package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the minimum severity a Logger writes.
type Level int

const (
	LevelDebug Level = iota // LevelDebug writes everything.
	LevelInfo               // LevelInfo skips debug entries.
	LevelWarn               // LevelWarn writes warnings and errors only.
	LevelError              // LevelError writes errors only.
)

// String returns the tag written into each log entry.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseVerbosity maps a configured verbosity to a level.
// Accepted values: quiet, normal, verbose, debug. Empty means normal.
func ParseVerbosity(verbosity string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(verbosity)) {
	case "", "normal":
		return LevelInfo, nil
	case "quiet":
		return LevelWarn, nil
	case "verbose", "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("invalid verbosity %q (must be quiet, normal, verbose or debug)", verbosity)
	}
}

// Logger writes operator diagnostics for pbs components.
//
// Entries go to the diagnostics writer (stderr by default) and, when file
// logging is enabled, are mirrored to ~/.pbs/logs/<session-id>-pbs.log.
// A Logger never writes to stdout, which is reserved for result envelopes.
type Logger struct {
	sessionID string
	component string
	level     Level
	sink      *sink
}

// sink is the shared destination of a logger and every logger derived from it.
type sink struct {
	mu        sync.Mutex
	logger    *log.Logger
	file      *os.File
	logPath   string
	closeOnce sync.Once
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	writer io.Writer
	level  Level
	toFile bool
}

// WithWriter sets the diagnostics writer (default os.Stderr).
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithLevel sets the minimum level written.
func WithLevel(level Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithFile mirrors entries into the session log file.
func WithFile(enabled bool) Option {
	return func(o *options) {
		o.toFile = enabled
	}
}

var (
	// Global session ID for the current process
	sessionID     string
	sessionIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir string

	// initOnce ensures directory initialization happens once
	initOnce sync.Once

	// initErr stores any error from directory initialization
	initErr error
)

// getSessionID returns or creates the session ID for this process
func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// initLogDirectory ensures the log directory exists
func initLogDirectory() error {
	initOnce.Do(func() {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			initErr = fmt.Errorf("failed to get home directory: %w", err)
			return
		}

		logDir = filepath.Join(homeDir, ".pbs", "logs")
		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
	})
	return initErr
}

// NewLogger creates a logger for a component.
//
// If file logging is requested but the log file cannot be opened, the
// logger still writes to the diagnostics writer and the error is returned
// alongside it so callers can warn about the degraded mode.
func NewLogger(component string, opts ...Option) (*Logger, error) {
	o := options{
		writer: os.Stderr,
		level:  LevelInfo,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &sink{}
	var fileErr error

	writer := o.writer
	if o.toFile {
		file, path, err := openLogFile()
		if err != nil {
			fileErr = err
		} else {
			s.file = file
			s.logPath = path
			writer = io.MultiWriter(o.writer, file)
		}
	}
	s.logger = log.New(writer, "", 0) // We'll format timestamps ourselves

	l := &Logger{
		sessionID: getSessionID(),
		component: component,
		level:     o.level,
		sink:      s,
	}
	if fileErr != nil {
		l.Warnf("Failed to initialize file logging: %v", fileErr)
	}
	return l, fileErr
}

// openLogFile opens the shared session log file in append mode.
func openLogFile() (*os.File, string, error) {
	if err := initLogDirectory(); err != nil {
		return nil, "", err
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("%s-pbs.log", getSessionID()))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open log file: %w", err)
	}
	return file, logPath, nil
}

// Discard returns a logger that drops every entry.
func Discard() *Logger {
	l, _ := NewLogger("discard", WithWriter(io.Discard), WithLevel(LevelError+1))
	return l
}

// Named derives a logger for another component sharing the same outputs.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		sessionID: l.sessionID,
		component: component,
		level:     l.level,
		sink:      l.sink,
	}
}

// formatLogEntry creates a log entry with timestamp, component, and level
func (l *Logger) formatLogEntry(level Level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

func (l *Logger) write(level Level, format string, v ...interface{}) {
	if l == nil || level < l.level {
		return
	}

	message := fmt.Sprintf(format, v...)
	entry := l.formatLogEntry(level, message)

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.logger.Println(entry)
}

// Printf logs a formatted message at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.write(LevelInfo, format, v...)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write(LevelDebug, format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write(LevelInfo, format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write(LevelWarn, format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write(LevelError, format, v...)
}

// SessionID returns the current session ID
func (l *Logger) SessionID() string {
	return l.sessionID
}

// LogPath returns the path to the log file, or "" when file logging is off
func (l *Logger) LogPath() string {
	return l.sink.logPath
}

// Close closes the log file. Safe to call multiple times and from any
// logger sharing the same outputs.
func (l *Logger) Close() error {
	var err error
	l.sink.closeOnce.Do(func() {
		if l.sink.file != nil {
			err = l.sink.file.Close()
		}
	})
	return err
}

// GetSessionID returns the current global session ID
func GetSessionID() string {
	return getSessionID()
}

// GetLogDirectory returns the directory where logs are stored
func GetLogDirectory() (string, error) {
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}
