// Package scheduler triggers named jobs on cron or interval schedules and
// runs them in-process with a timeout, panic recovery and an optional
// skip-if-running guard. RunNow fires a registered job on demand (the bot's
// /digest command) under the same guard, so a manual run never overlaps a
// scheduled one. Snapshot reports next and last runs for /status.
package scheduler
