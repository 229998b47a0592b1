// Package logger provides slog attribute helpers shared by the engine packages.
//
// Helpers return the empty slog.Attr for nil or empty values, so they can be
// passed unconditionally:
//
//	log.ErrorContext(ctx, "command failed",
//		logger.CommandID(cmd.ID()),
//		logger.CorrelationID(msg.CorrelationID),
//		logger.State(c.State()),
//		logger.Error(c.Err()))
//
// Components accept a *slog.Logger through a With*Logger option and default
// to a logger that discards output.
package logger
