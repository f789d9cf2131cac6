// Package logging provides structured logging for standsim runs.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation, so a run with many concurrent agents can be
// filtered after the fact by component, agent or stand.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying handler.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(".standsim", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	agentLog := logger.WithComponent("agent").WithAgent("a1b2c3d4")
//	agentLog.Info("routed", "stand", "A", "phase", 0)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"routed","component":"agent","agent_id":"a1b2c3d4","stand":"A","phase":0}
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a
// bytes.Buffer to assert on emitted entries.
package logging
