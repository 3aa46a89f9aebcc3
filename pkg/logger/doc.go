// Package logger provides the structured logging interface used by every
// describer component.
//
// It wraps zerolog with a small interface so components can be handed a
// NopLogger or TestLogger in tests:
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("source", "reddit").Info("run started")
//	log.WithError(err).WarnWithFields("attempt failed", map[string]interface{}{
//	    "attempt": 2,
//	})
//
// Configuration:
//   - Level: debug, info, warn, error, fatal
//   - Format: "console" (coloured, default) or "json" for scheduler log collectors
//   - File: optional path; lines are written to both stdout and the file
package logger
