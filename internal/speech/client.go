package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultVoiceID is used when a request does not name a voice.
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

	// DefaultModelID is the multilingual synthesis model, needed for
	// Hindi content.
	DefaultModelID = "eleven_multilingual_v2"

	// maxTextLength bounds synthesis input.
	maxTextLength = 5000
)

var (
	// ErrUnavailable indicates the synthesis backend could not be
	// reached or refused the request. Callers fall back to client-side
	// speech.
	ErrUnavailable = errors.New("speech service unavailable")

	// ErrEmptyText indicates empty synthesis input.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrTextTooLong indicates input over the synthesis limit.
	ErrTextTooLong = fmt.Errorf("text too long, maximum %d characters", maxTextLength)

	// ErrMissingAPIKey indicates no API key was configured.
	ErrMissingAPIKey = errors.New("speech API key not configured")
)

// VoiceSettings tune ElevenLabs synthesis.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings returns the settings used when a request does
// not override them.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.5,
		UseSpeakerBoost: true,
	}
}

// SynthesizeRequest is one synthesis call.
type SynthesizeRequest struct {
	Text     string
	VoiceID  string
	ModelID  string
	Settings *VoiceSettings
}

// Voice is one available synthesis voice.
type Voice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

// Client provides speech synthesis.
type Client interface {
	// Synthesize renders text to MPEG audio.
	Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error)

	// Voices lists the available voices.
	Voices(ctx context.Context) ([]Voice, error)

	// Available reports whether the backend is reachable.
	Available(ctx context.Context) bool
}

// Config holds configuration for the speech client.
type Config struct {
	// BaseURL of the ElevenLabs-compatible API, e.g.
	// https://api.elevenlabs.io/v1.
	BaseURL string

	// APIKey is sent as the xi-api-key header.
	APIKey string

	// DefaultVoice is used for requests that do not name a voice.
	// Falls back to DefaultVoiceID when empty.
	DefaultVoice string
}

// client implements Client against the ElevenLabs HTTP API.
type client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a speech client.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &client{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
		logger: logger,
	}, nil
}

// synthesizeBody is the JSON body for POST /text-to-speech/{voice}.
type synthesizeBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

func (c *client) Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	if len(req.Text) > maxTextLength {
		return nil, ErrTextTooLong
	}
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = c.cfg.DefaultVoice
	}
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = DefaultModelID
	}
	settings := DefaultVoiceSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	data, err := json.Marshal(synthesizeBody{
		Text:          req.Text,
		ModelID:       modelID,
		VoiceSettings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.cfg.BaseURL + "/text-to-speech/" + voiceID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("synthesis request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		c.logger.Warn("synthesis rejected",
			zap.Int("status", httpResp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, httpResp.StatusCode)
	}

	audio, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %v", ErrUnavailable, err)
	}

	c.logger.Debug("synthesis completed",
		zap.String("voice_id", voiceID),
		zap.Int("text_len", len(req.Text)),
		zap.Int("audio_bytes", len(audio)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return audio, nil
}

// voicesResponse is the JSON body returned by GET /voices.
type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

func (c *client) Voices(ctx context.Context) ([]Voice, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	url := c.cfg.BaseURL + "/voices"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, httpResp.StatusCode)
	}

	var resp voicesResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return resp.Voices, nil
}

func (c *client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/voices", nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
