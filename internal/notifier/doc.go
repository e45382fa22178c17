// Package notifier sends household messages (delay notices, the daily digest,
// manual messages) to the configured chat.
//
// Delivery goes through a transport.Sender (the Telegram adapter in
// production). Sends are throttled with a token bucket, retried with jittered
// exponential backoff and suppressed when the same text was sent to the same
// chat within the dedup window. A small in-memory history of recent sends is
// kept for the status endpoint.
package notifier
