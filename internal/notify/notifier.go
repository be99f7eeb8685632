package notify

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

var (
	// ErrDeliveryFailed indicates the notice could not be delivered.
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrNoRecipients indicates a notice without recipients.
	ErrNoRecipients = errors.New("no recipients")
)

// Notice is one notification to deliver.
type Notice struct {
	Recipients []string
	Subject    string
	Body       string
}

// Notifier delivers notices.
type Notifier interface {
	Send(ctx context.Context, n Notice) error
}

// LogNotifier records notices without sending anything.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, notice Notice) error {
	if len(notice.Recipients) == 0 {
		return ErrNoRecipients
	}
	n.logger.Info("notification (log only)",
		zap.Int("recipients", len(notice.Recipients)),
		zap.String("subject", notice.Subject),
	)
	return nil
}

// MailConfig holds configuration for the mail notifier.
type MailConfig struct {
	// BaseURL of a SendGrid-compatible API, e.g.
	// https://api.sendgrid.com.
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// SenderEmail is the from address.
	SenderEmail string
}

// MailNotifier delivers notices over a SendGrid-compatible API.
type MailNotifier struct {
	cfg    MailConfig
	http   *http.Client
	logger *zap.Logger
}

// NewMailNotifier creates a mail notifier.
func NewMailNotifier(cfg MailConfig, logger *zap.Logger) (*MailNotifier, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL required")
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("sender email required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MailNotifier{
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

// sendBody is the JSON body for POST /v3/mail/send.
type sendBody struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type personalization struct {
	To []address `json:"to"`
}

type address struct {
	Email string `json:"email"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (n *MailNotifier) Send(ctx context.Context, notice Notice) error {
	if len(notice.Recipients) == 0 {
		return ErrNoRecipients
	}

	to := make([]address, len(notice.Recipients))
	for i, r := range notice.Recipients {
		to[i] = address{Email: r}
	}

	data, err := json.Marshal(sendBody{
		Personalizations: []personalization{{To: to}},
		From:             address{Email: n.cfg.SenderEmail},
		Subject:          notice.Subject,
		Content:          []content{{Type: "text/plain", Value: notice.Body}},
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	url := n.cfg.BaseURL + "/v3/mail/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		n.logger.Warn("notification rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}

	n.logger.Info("notification sent",
		zap.Int("recipients", len(notice.Recipients)),
		zap.String("subject", notice.Subject),
	)
	return nil
}
