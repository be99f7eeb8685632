// Package speech provides text-to-speech via an ElevenLabs-compatible
// HTTP API.
//
// Synthesis failures surface as ErrUnavailable so the chat surface can
// fall back to browser-side speech instead of failing the response.
package speech
