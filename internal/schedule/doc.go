// Package schedule owns the live chore schedule.
//
// The Engine expands recurring rules into dated occurrences over a window that
// ends on the last day of the month after next, answers queries against that
// window, applies user mutations (done, delay, one-off, delete) and moves
// lapsed occurrences into a history store.
//
// Every exported method takes the engine mutex for its whole duration.
// Outbound messages are sent only after the mutex is released.
package schedule
