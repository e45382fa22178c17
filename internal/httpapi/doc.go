// Package httpapi exposes the schedule engine over HTTP with chi: read
// endpoints for the live schedule, history and monthly views, mutations for
// done/delay/one-off/delete, a manual refresh, an iCalendar feed and a chat
// send passthrough.
package httpapi
