package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}, nil)
	require.NoError(t, err)
	return c
}

func TestSynthesize(t *testing.T) {
	var gotPath, gotKey string
	var gotBody synthesizeBody

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mpeg-bytes"))
	})

	audio, err := c.Synthesize(context.Background(), SynthesizeRequest{Text: "Namaste class"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mpeg-bytes"), audio)

	assert.Equal(t, "/text-to-speech/"+DefaultVoiceID, gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "Namaste class", gotBody.Text)
	assert.Equal(t, DefaultModelID, gotBody.ModelID)
	assert.Equal(t, DefaultVoiceSettings(), gotBody.VoiceSettings)
}

func TestSynthesizeConfiguredDefaultVoice(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", DefaultVoice: "voice-hi"}, nil)
	require.NoError(t, err)

	_, err = c.Synthesize(context.Background(), SynthesizeRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "/text-to-speech/voice-hi", gotPath)
}

func TestSynthesizeValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	ctx := context.Background()

	_, err := c.Synthesize(ctx, SynthesizeRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = c.Synthesize(ctx, SynthesizeRequest{Text: strings.Repeat("a", maxTextLength+1)})
	assert.ErrorIs(t, err, ErrTextTooLong)
}

func TestSynthesizeMissingAPIKey(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost:1"}, nil)
	require.NoError(t, err)

	_, err = c.Synthesize(context.Background(), SynthesizeRequest{Text: "hello"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSynthesizeBackendErrorMapsToUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := c.Synthesize(context.Background(), SynthesizeRequest{Text: "hello"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voices", r.URL.Path)
		json.NewEncoder(w).Encode(voicesResponse{Voices: []Voice{
			{VoiceID: "v1", Name: "Rachel"},
			{VoiceID: "v2", Name: "Priya"},
		}})
	})

	voices, err := c.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, "Rachel", voices[0].Name)
}

func TestAvailable(t *testing.T) {
	up := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	assert.True(t, up.Available(context.Background()))

	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.False(t, down.Available(context.Background()))
}
