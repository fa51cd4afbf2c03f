// Package logging provides structured logging for the path daemon.
//
// It wraps log/slog: JSON output for production, text for development,
// and service/version fields on every entry. Subsystems take a child
// logger from Component so their entries carry a component field.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("opticalpath").Info("optical path set", "mode", "ar")
package logging
