package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Sender определяет интерфейс для отправки сообщений пользователю
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Client реализует отправку сообщений и разрешение username через Telegram Bot API
type Client struct {
	logger   *zap.Logger
	botToken string
	apiURL   string
	client   *http.Client
}

// NewClient создаёт новый Telegram клиент
func NewClient(logger *zap.Logger, botToken string) *Client {
	return &Client{
		logger:   logger,
		botToken: botToken,
		apiURL:   "https://api.telegram.org/bot" + botToken,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// apiResponse - общий конверт ответов Bot API:
// {"ok": true, "result": ...} или {"ok": false, "description": "..."}
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// Send отправляет текстовое сообщение в чат
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}

	if _, err := c.call(ctx, "sendMessage", payload); err != nil {
		return err
	}

	c.logger.Debug("telegram message sent",
		zap.String("chat_id", chatID),
	)
	return nil
}

// ResolveUsername возвращает username пользователя по его ID, без префикса @.
// Пустая строка без ошибки - у пользователя username не задан
func (c *Client) ResolveUsername(ctx context.Context, userID int64) (string, error) {
	payload := map[string]interface{}{
		"chat_id": strconv.FormatInt(userID, 10),
	}

	result, err := c.call(ctx, "getChat", payload)
	if err != nil {
		return "", err
	}

	var chat struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(result, &chat); err != nil {
		return "", fmt.Errorf("failed to decode chat: %w", err)
	}

	return chat.Username, nil
}

// call выполняет метод Bot API и возвращает поле result
func (c *Client) call(ctx context.Context, method string, payload map[string]interface{}) (json.RawMessage, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.apiURL, method)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// При не-200 читаем тело ответа для диагностики и не декодируем JSON
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("telegram API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram API error: %s", result.Description)
	}

	return result.Result, nil
}

// NoOpSender - no-op реализация Sender (когда Telegram отключён)
type NoOpSender struct {
	logger *zap.Logger
}

// NewNoOpSender создаёт no-op sender
func NewNoOpSender(logger *zap.Logger) *NoOpSender {
	return &NoOpSender{
		logger: logger,
	}
}

// Send ничего не делает, только логирует
func (s *NoOpSender) Send(ctx context.Context, chatID, text string) error {
	s.logger.Debug("no-op sender: message not sent",
		zap.String("chat_id", chatID),
		zap.String("text_preview", truncate(text, 50)),
	)
	return nil
}

// truncate обрезает строку до указанного числа рун, не разрезая UTF-8 символы
func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
