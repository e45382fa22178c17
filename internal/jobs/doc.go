// Package jobs holds the periodic orchestrations around the schedule engine:
// the refresh cycle that persists lapsed occurrences and regenerates from the
// rule provider, and the daily digest sent to the household chat.
package jobs
