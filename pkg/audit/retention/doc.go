// Package retention prunes the audit log by age and by record count,
// either on demand or on a cron schedule.
package retention
