// Package logging configures the log/slog loggers used across statemock.
//
//	log := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.FormatJSON,
//	})
//	log.Info("listening", "addr", ":4280")
//
// Components take a *slog.Logger through an option and fall back to Nop when
// none is given.
package logging
