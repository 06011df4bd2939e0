// Package scheduler turns wall-clock triggers into task-engine work.
//
// Three kinds of triggers exist:
//   - one-shot timers keyed by job id (ScheduleOnce), used for scheduled posts
//   - cron expressions
//   - fixed intervals with a randomized first run
//
// The scheduler never runs jobs itself; it enqueues them into engine.Service.
package scheduler
