package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

// Fields represents log fields
type Fields map[string]interface{}

// Default is the process-wide logger. The package helpers call Init when it
// is still nil.
var Default *Logger

// Init installs a console logger at the level named by LOG_LEVEL, or by
// COLLECTOR_ENVIRONMENT when LOG_LEVEL is unset
func Init() {
	level := getLogLevel()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	Default = New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	Default.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// New creates a logger writing JSON events to w
func New(w io.Writer) *Logger {
	return &Logger{logger: zerolog.New(w).With().Timestamp().Logger()}
}

func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if os.Getenv("COLLECTOR_ENVIRONMENT") == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func defaultLogger() *Logger {
	if Default == nil {
		Init()
	}
	return Default
}

// WithFields creates a new logger with fields
func (l *Logger) WithFields(fields Fields) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{logger: ctx.Logger()}
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithError creates a new logger carrying err on every event
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }

// Fatal returns an event that exits the process once sent
func (l *Logger) Fatal() *zerolog.Event { return l.logger.Fatal() }

// ForComponent creates a logger tagged with a component name
func ForComponent(name string) *Logger {
	return defaultLogger().WithField("component", name)
}

// ForCrawler creates a logger for a specific crawler
func ForCrawler(crawlerName string) *Logger {
	return defaultLogger().WithField("crawler", crawlerName)
}

// ForVehicle creates a logger scoped to one vehicle record
func ForVehicle(vehicleID string) *Logger {
	return defaultLogger().WithFields(Fields{"component": "vehicle", "vehicle_id": vehicleID})
}

func ForMaterializer() *Logger { return ForComponent("materializer") }
func ForWorker() *Logger       { return ForComponent("worker") }
func ForPublisher() *Logger    { return ForComponent("publisher") }
func ForCache() *Logger        { return ForComponent("cache") }

// Info logs a formatted message on the default logger
func Info(format string, v ...interface{}) {
	defaultLogger().Info().Msgf(format, v...)
}

// Warn logs a formatted warning on the default logger
func Warn(format string, v ...interface{}) {
	defaultLogger().Warn().Msgf(format, v...)
}

// LogError logs err for a component with a formatted message
func LogError(component string, err error, format string, v ...interface{}) {
	ForComponent(component).WithError(err).Error().Msgf(format, v...)
}

// LogInfo logs a formatted message for a component
func LogInfo(component string, format string, v ...interface{}) {
	ForComponent(component).Info().Msgf(format, v...)
}
