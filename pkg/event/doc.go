// Package event builds and delivers the impression and conversion payloads
// that report decisions to an analytics backend.
//
// A Factory stamps events with project metadata (account, project,
// revision, IP anonymization, bot filtering) and client identification. A
// Dispatcher delivers them; HTTPDispatcher posts JSON with exponential
// backoff retries, and NoopDispatcher drops everything for offline use.
//
// Dispatch is fire-and-forget from the caller's point of view: delivery
// failures are reported as errors but never influence decisions.
package event
