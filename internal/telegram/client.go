// Package telegram delivers rendered reports through the Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/httpclient"
	"github.com/Checker-Finance/sme-deals/internal/rate"
	"github.com/Checker-Finance/sme-deals/internal/report"
	"github.com/Checker-Finance/sme-deals/pkg/utils"
)

// ErrDeliveryFailed indicates a message could not be delivered to the chat.
// Recoverable at run level: the seen set is persisted regardless, trading a
// possibly missed alert for never spamming duplicates.
var ErrDeliveryFailed = errors.New("telegram delivery failed")

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
}

// Notifier sends report text to a single Telegram chat, splitting into
// multiple messages when the per-message length limit is exceeded.
type Notifier struct {
	logger       *zap.Logger
	apiBase      string
	token        string
	chatID       string
	messageLimit int
	exec         *httpclient.Executor
}

// NewNotifier constructs a Telegram notifier.
func NewNotifier(logger *zap.Logger, apiBase, token, chatID string, messageLimit int, rateMgr *rate.Manager, timeout time.Duration) *Notifier {
	httpClient := &http.Client{Timeout: timeout}
	exec := httpclient.New(logger, rateMgr, httpClient, 2, "telegram", func(status int, body []byte) error {
		var resp sendMessageResponse
		_ = json.Unmarshal(body, &resp)
		logger.Warn("telegram.client_error",
			zap.Int("status", status),
			zap.String("description", resp.Description))
		return fmt.Errorf("%w: api returned %d: %s", ErrDeliveryFailed, status, resp.Description)
	})
	return &Notifier{
		logger:       logger,
		apiBase:      apiBase,
		token:        token,
		chatID:       chatID,
		messageLimit: messageLimit,
		exec:         exec,
	}
}

// Send delivers text to the chat, chunked at line boundaries to stay inside
// the platform limit. The first failing chunk aborts the remainder: records
// already marked seen stay seen, so a retry next run won't duplicate the
// chunks that made it out.
func (n *Notifier) Send(ctx context.Context, text string) error {
	chunks := report.Split(text, n.messageLimit)
	for i, chunk := range chunks {
		if err := n.sendOne(ctx, chunk); err != nil {
			n.logger.Error("telegram.send_failed",
				zap.Int("chunk", i+1),
				zap.Int("chunks", len(chunks)),
				zap.Error(err))
			return err
		}
	}

	n.logger.Info("telegram.send_success",
		zap.Int("chunks", len(chunks)),
		zap.Int("chars", len(text)))
	return nil
}

func (n *Notifier) sendOne(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrDeliveryFailed, err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp sendMessageResponse
	if err := n.exec.DoJSON(ctx, req, "telegram_api", &resp); err != nil {
		if errors.Is(err, ErrDeliveryFailed) {
			return err
		}
		return fmt.Errorf("%w: %s", ErrDeliveryFailed, utils.MaskBotToken(err.Error()))
	}
	if !resp.OK {
		return fmt.Errorf("%w: api rejected message: %s", ErrDeliveryFailed, resp.Description)
	}
	return nil
}
