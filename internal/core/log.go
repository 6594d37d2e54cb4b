package core

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	SOURCE_LOG_FIELD_NAME = "src"
	PATH_LOG_FIELD_NAME   = "path"
	EXPR_ID_LOG_FIELD     = "expr"

	LOG_SOURCE = "/evalx/core"
)

var packageLogger atomic.Pointer[zerolog.Logger]

func init() {
	zerolog.DurationFieldInteger = false
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.MessageFieldName = "msg"
	zerolog.LevelFieldName = "lvl"
	zerolog.TimestampFieldName = "tm"

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	SetLogger(logger)
}

// SetLogger sets the logger of the evaluation runtime, the 'src' field is added to the logger.
func SetLogger(logger zerolog.Logger) {
	logger = ChildLoggerForSource(logger, LOG_SOURCE)
	packageLogger.Store(&logger)
}

func SetLogLevel(level zerolog.Level) {
	logger := packageLogger.Load().Level(level)
	packageLogger.Store(&logger)
}

func Logger() *zerolog.Logger {
	return packageLogger.Load()
}

func ChildLoggerForSource(logger zerolog.Logger, src string) zerolog.Logger {
	return logger.With().Str(SOURCE_LOG_FIELD_NAME, src).Logger()
}
