// Package workflow drives a session's stage pipeline from trigger text
// to finished artifact.
//
// A run executes the configured stages strictly in order. Automated
// stages perform their work and complete; checkpoint stages suspend and
// wait for an external decision (approve, regenerate, reject) raced
// against a timeout. One run may be active per session at a time, and
// other sessions' runs proceed fully in parallel. Status reads return
// immutable snapshots, safe to interleave with the run's own writes.
package workflow
