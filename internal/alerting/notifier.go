package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Alert kinds emitted by the service loop.
const (
	KindUtilization = "utilization"
	KindSolvency    = "solvency"
)

// Notification carries the alert context.
type Notification struct {
	Bucket         time.Time
	Kind           string
	Product        string
	Strategy       string
	UtilizationPct decimal.Decimal
	ThresholdPct   decimal.Decimal
	ActiveCover    decimal.Decimal
	MaxCover       decimal.Decimal
	VaultBalance   decimal.Decimal
	Liability      decimal.Decimal
	Channels       []string
	AdditionalMsg  string
}

// Notifier delivers alerts to an external channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls the sendMessage API with the rendered alert text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected telegram status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Time("bucket", note.Bucket).
		Str("kind", note.Kind).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("alert dispatched via telegram")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Coverline Alert]\n")
	builder.WriteString(fmt.Sprintf("Bucket: %s UTC\n", note.Bucket.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Kind: %s\n", note.Kind))
	builder.WriteString(fmt.Sprintf("Product: %s (strategy %s)\n", note.Product, note.Strategy))
	switch note.Kind {
	case KindSolvency:
		builder.WriteString(fmt.Sprintf("Vault: %s wei\n", note.VaultBalance.StringFixed(0)))
		builder.WriteString(fmt.Sprintf("Claim liability: %s wei\n", note.Liability.StringFixed(0)))
	default:
		builder.WriteString(fmt.Sprintf("Active cover: %s wei of %s wei\n", note.ActiveCover.StringFixed(0), note.MaxCover.StringFixed(0)))
		builder.WriteString(fmt.Sprintf("Utilization: %s%% (threshold %s%%)\n", note.UtilizationPct.StringFixed(2), note.ThresholdPct.StringFixed(2)))
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
