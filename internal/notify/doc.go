// Package notify delivers workflow completion notices.
//
// The mail notifier speaks the SendGrid v3 send API. When notification
// is disabled or unconfigured the workflow falls back to the log
// notifier, which only records what would have been sent.
package notify
