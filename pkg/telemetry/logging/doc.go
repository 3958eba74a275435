// Package logging builds the structured loggers used across pulse.
//
// # Overview
//
// The package wraps log/slog:
//   - JSON, text and console output formats
//   - A level held in a slog.LevelVar so it can change at runtime
//   - Context-carried request IDs appended to log records
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger.Slog())
//
//	// Components attach their name
//	log := logger.Component("relay")
//	log.Warn("pending queue above watermark", "depth", 10001)
//
//	// Later, on config reload
//	_ = logger.SetLevel("debug")
//
// # Request IDs
//
// Handlers store a request ID with WithRequestID; records logged through a
// context carrying one include a request_id attribute.
package logging
