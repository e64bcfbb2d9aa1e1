// Package maintenance runs periodic upkeep of the wallet database on a cron
// schedule (github.com/robfig/cron/v3).
//
// Jobs:
//   - wal_checkpoint: PRAGMA wal_checkpoint(TRUNCATE) on the write thread, outside any transaction
//   - optimize: PRAGMA optimize on the write thread
//   - quick_check: PRAGMA quick_check on a read connection; damage is reported as a Corrupt error
//
// Runs of the same job never overlap. Each run updates a JobStatus and, when a
// Registerer is configured, the walletstore_maintenance_* metrics.
//
// Basic usage:
//
//	s := maintenance.New(maintenance.Config{Logger: logger, Registerer: reg})
//	if err := maintenance.Register(s, db, maintenance.Schedules{
//		Checkpoint: "@every 10m",
//		Optimize:   "0 4 * * *",
//		Integrity:  "@daily",
//	}); err != nil {
//		return err
//	}
//	s.Start()
//	defer s.Stop(ctx)
package maintenance
