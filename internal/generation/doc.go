// Package generation provides text generation via langchaingo.
//
// The service wraps an OpenAI-compatible chat completion endpoint. Any
// provider speaking that protocol works by pointing BaseURL at it. All
// transport and provider failures surface as ErrUnavailable so callers
// can degrade instead of crashing a workflow run.
package generation
