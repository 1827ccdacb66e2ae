package observability

import (
	"time"

	"go.uber.org/zap"
)

// Thin wrappers over zap fields so the rest of the codebase does not
// import zap directly.

// String creates a string log field.
func String(key, value string) zap.Field { return zap.String(key, value) }

// Int creates an int log field.
func Int(key string, value int) zap.Field { return zap.Int(key, value) }

// Int64 creates an int64 log field.
func Int64(key string, value int64) zap.Field { return zap.Int64(key, value) }

// Float64 creates a float64 log field.
func Float64(key string, value float64) zap.Field { return zap.Float64(key, value) }

// Bool creates a bool log field.
func Bool(key string, value bool) zap.Field { return zap.Bool(key, value) }

// Duration creates a duration log field.
func Duration(key string, value time.Duration) zap.Field { return zap.Duration(key, value) }

// Error creates an error log field.
func Error(err error) zap.Field { return zap.Error(err) }
