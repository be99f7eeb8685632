// Package session manages chat sessions and their message history.
//
// A session carries the teacher's classroom profile (subjects taught,
// grade levels, preferred language) that the intent classifier and the
// memory extractor consume. Two Store implementations exist: an
// in-memory store for tests and a SQLite-backed store for the daemon.
package session
