// Package logging provides structured logging for weaver runs.
//
// It wraps Go's log/slog with a JSON handler and carries persistent context
// attributes (run ID, phase, component) into every entry so that the logs of
// one changelog run can be filtered after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/weaver", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithRun(runID).WithPhase("resolve")
//	runLogger.Info("fetched parent items", "count", 12, "duration_ms", 340)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"fetched parent items","run_id":"...","phase":"resolve","count":12,"duration_ms":340}
//
// When no directory is given, entries go to stderr. [NopLogger] discards
// everything and is meant for tests.
//
// # Thread Safety
//
// A [Logger] and all child loggers derived from it are safe for concurrent
// use; the aggregation engine logs from many goroutines at once.
package logging
