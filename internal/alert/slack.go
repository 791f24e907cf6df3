package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// timestampLayout renders detection times in Slack messages.
const timestampLayout = "2006-01-02 15:04:05 UTC"

// SlackConfig configures the incoming-webhook sink.
type SlackConfig struct {
	WebhookURL string

	// Timeout bounds a single POST. Default: 10s.
	Timeout time.Duration

	// MaxAttempts bounds transmissions of one message, retrying network
	// errors, 429 and 5xx responses. Default: 3.
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration

	Logger *zap.Logger
}

// SlackSink posts Block Kit messages to a Slack incoming webhook.
type SlackSink struct {
	cfg    SlackConfig
	client *http.Client
	logger *zap.Logger
}

// NewSlackSink returns a sink for the configured webhook.
func NewSlackSink(cfg SlackConfig) (*SlackSink, error) {
	if cfg.WebhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialWait <= 0 {
		cfg.InitialWait = time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackSink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Message is a Slack webhook payload.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks"`
}

// Block is one Block Kit layout block.
type Block struct {
	Type   string       `json:"type"`
	Text   *TextObject  `json:"text,omitempty"`
	Fields []TextObject `json:"fields,omitempty"`
}

// TextObject is a Block Kit text element.
type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func header(text string) Block {
	return Block{Type: "header", Text: &TextObject{Type: "plain_text", Text: text}}
}

func section(text string) Block {
	return Block{Type: "section", Text: &TextObject{Type: "mrkdwn", Text: text}}
}

func divider() Block {
	return Block{Type: "divider"}
}

func field(label, value string) TextObject {
	return TextObject{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", label, value)}
}

// Emoji returns the marker shown next to a priority.
func Emoji(p store.Priority) string {
	switch store.Priority(strings.ToLower(string(p))) {
	case store.PriorityHigh:
		return "🔴"
	case store.PriorityMedium:
		return "🟡"
	case store.PriorityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

// FormatAlert renders a single-change message.
func FormatAlert(r Record) Message {
	ts := r.Timestamp.UTC().Format(timestampLayout)
	return Message{
		Text: fmt.Sprintf("Competitive Intelligence Alert: %s - %s", r.Company, r.Category),
		Blocks: []Block{
			header(Emoji(r.Priority) + " Competitor Change Detected"),
			{Type: "section", Fields: []TextObject{
				field("Company", r.Company),
				field("Priority", strings.ToUpper(string(r.Priority))),
				field("Asset", r.AssetLabel),
				field("Change Type", string(r.Category)),
			}},
			section("*Summary (Before → After):*\n" + r.Summary),
			section("*Why It Matters:*\n" + r.Rationale),
			section(fmt.Sprintf("*Citation:*\n<%s|%s>\n(Detected: %s)", r.URL, r.URL, ts)),
			divider(),
		},
	}
}

// FormatDigest renders a batch grouped by company.
func FormatDigest(d Digest) Message {
	blocks := []Block{
		header("📊 " + d.Title),
		section(fmt.Sprintf("*%d change(s) detected*", len(d.Records))),
		divider(),
	}
	for _, g := range d.Groups() {
		blocks = append(blocks, section(fmt.Sprintf("*%s* (%d change(s))", g.Company, len(g.Records))))
		for _, r := range g.Records {
			blocks = append(blocks, section(fmt.Sprintf("%s *%s*: %s\n<%s|View changes>",
				Emoji(r.Priority), r.Category, r.Summary, r.URL)))
		}
		blocks = append(blocks, divider())
	}
	return Message{
		Text:   fmt.Sprintf("%s: %d changes", d.Title, len(d.Records)),
		Blocks: blocks,
	}
}

// Send posts one alert.
func (s *SlackSink) Send(ctx context.Context, r Record) error {
	return s.post(ctx, FormatAlert(r))
}

// SendDigest posts a digest. An empty digest sends nothing.
func (s *SlackSink) SendDigest(ctx context.Context, d Digest) error {
	if len(d.Records) == 0 {
		return nil
	}
	return s.post(ctx, FormatDigest(d))
}

// statusError is a non-2xx webhook response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("slack webhook returned %d: %s", e.code, e.body)
}

func (e *statusError) transient() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func (s *SlackSink) post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode slack message: %w", err)
	}

	var lastErr error
	for attempt := range s.cfg.MaxAttempts {
		lastErr = s.postOnce(ctx, body)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var se *statusError
		if errors.As(lastErr, &se) && !se.transient() {
			return lastErr
		}
		if attempt == s.cfg.MaxAttempts-1 {
			break
		}

		wait := s.backoff(attempt)
		s.logger.Warn("retrying slack webhook",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}

func (s *SlackSink) postOnce(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *SlackSink) backoff(attempt int) time.Duration {
	wait := float64(s.cfg.InitialWait) * math.Pow(2, float64(attempt))
	return min(time.Duration(wait), s.cfg.MaxWait)
}
