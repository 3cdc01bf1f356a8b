// Package logger builds the slog.Logger used by the worker process.
//
// Loggers write JSON by default. Records logged with a handler context carry
// the running job's id and queue without the handler adding them itself:
//
//	log := logger.New(logger.WithLevel(slog.LevelDebug), logger.WithJobContext())
package logger
