package logger

import (
	"log"
	"sync"

	"github.com/gatewaylab/payu-gateway/infra/opensearch"
)

var (
	globalLogger *SystemLogger
	globalMutex  sync.RWMutex
)

// InitGlobalLogger initializes the global system logger
func InitGlobalLogger(openSearchLogger *opensearch.Logger, config SystemLoggerConfig) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalLogger = NewSystemLogger(openSearchLogger, config)
}

// GetGlobalLogger returns the global system logger
func GetGlobalLogger() *SystemLogger {
	globalMutex.RLock()
	defer globalMutex.RUnlock()

	if globalLogger == nil {
		globalMutex.RUnlock()
		globalMutex.Lock()
		if globalLogger == nil {
			globalLogger = NewSystemLogger(nil, SystemLoggerConfig{
				EnableConsole: true,
				MinLevel:      LevelInfo,
				Service:       "payu-gateway",
				Environment:   "sandbox",
			})
			log.Println("Warning: using default logger, call InitGlobalLogger during startup")
		}
		globalMutex.Unlock()
		globalMutex.RLock()
	}

	return globalLogger
}

// Debug logs a debug message via the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message via the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message via the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message via the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// Fatal logs a fatal message via the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}
