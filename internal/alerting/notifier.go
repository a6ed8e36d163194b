// Package alerting dispatches extreme-sentiment notifications.
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

	"btc-market-pulse/internal/timeseries"
)

// Alert directions.
const (
	DirectionFear  = "extreme_fear"
	DirectionGreed = "extreme_greed"
)

// Notification captures one extreme sentiment reading.
type Notification struct {
	Day       timeseries.DateKey
	Value     float64
	Threshold float64
	Direction string
	BTCPrice  float64
}

// Notifier delivers notifications to an external channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
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

// Notify posts the rendered message via the sendMessage API.
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
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("day", string(note.Day)).
		Str("direction", note.Direction).
		Float64("value", note.Value).
		Msg("sentiment alert sent")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[BTC Sentiment Alert]\n")
	builder.WriteString(fmt.Sprintf("Day: %s\n", note.Day))
	switch note.Direction {
	case DirectionFear:
		builder.WriteString(fmt.Sprintf("Fear & Greed: %.0f (extreme fear, threshold %.0f)\n", note.Value, note.Threshold))
	case DirectionGreed:
		builder.WriteString(fmt.Sprintf("Fear & Greed: %.0f (extreme greed, threshold %.0f)\n", note.Value, note.Threshold))
	default:
		builder.WriteString(fmt.Sprintf("Fear & Greed: %.0f\n", note.Value))
	}
	builder.WriteString(fmt.Sprintf("BTC: $%.2f\n", note.BTCPrice))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
