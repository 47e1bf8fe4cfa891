// Package notification delivers typed callbacks for decisions and tracked
// events. Listeners run synchronously on the calling goroutine in
// registration order; a panicking listener is recovered and logged so it
// cannot disturb the caller or the remaining listeners.
package notification
