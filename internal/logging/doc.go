// Package logging provides structured logging for teachd built on Zap.
//
// Loggers are context-aware: correlation fields (trace id, session id,
// run id, stage id) are extracted from the context on every call so that
// a single workflow run can be followed across services.
package logging
