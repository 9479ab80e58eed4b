// Package logging provides structured logging for droidbench.
//
// It wraps log/slog to write JSON lines, one file per data directory
// (droidbench.log), with child loggers carrying device context:
//
//	logger, err := logging.NewLoggerWithRotation(dataDir, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	devLog := logger.WithDevice("emulator-5554").WithPhase("boot")
//	devLog.Info("boot completed", "elapsed_ms", 41250)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"boot completed","serial":"emulator-5554","phase":"boot","elapsed_ms":41250}
//
// Rotated files are named droidbench.log.1, droidbench.log.2 and so on, .1
// being the newest; with compression enabled they become droidbench.log.1.gz.
//
// [AggregateLogs], [FilterLogs] and [ExportLogEntries] back the
// "droidbench logs" command. Compressed backups are not read back.
//
// A nil *Logger is valid and discards everything; [NopLogger] does the same
// with a real value, which is what tests use.
package logging
