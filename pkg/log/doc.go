/*
Package log provides structured logging for Dynamo using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns shared across the synchronizer, adapters, store, and
policy engines.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	syncLog := log.WithComponent("sync")
	syncLog.Info().Msg("starting cycle")

	adapterLog := log.WithComponent("adapter.replica").
		With().Str("site", "T2_US_Example").Logger()
	adapterLog.Warn().Msg("chunk exhausted retries, skipping range")

Context helpers (WithSite, WithDataset, WithCycle) attach the field names
most frequently filtered on when reading Dynamo's logs: the site a replica
operation concerns, the dataset under evaluation, and the synchronization
cycle id a log line belongs to.

# Levels

Debug is for adapter-level chunk tracing; Info is the default production
level (cycle start/stop, phase summaries, decision counts); Warn covers
recoverable anomalies (MissingReferent, parse skips); Error covers failed
operations that do not abort the process. Fatal is reserved for ConfigError
at startup.
*/
package log
