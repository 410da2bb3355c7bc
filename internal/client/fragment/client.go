package fragment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUnauthorized - API звёзд отверг токен сессии.
	// Автоматической повторной аутентификации нет: токен обновляется
	// только явным вызовом Authenticate
	ErrUnauthorized = errors.New("fragment: unauthorized")

	// ErrUpstreamUnavailable - транспортная ошибка или таймаут API звёзд
	ErrUpstreamUnavailable = errors.New("fragment: upstream unavailable")
)

// Client - HTTP-клиент Fragment API для покупки Telegram Stars.
// Токен сессии получается через Authenticate и живёт до перезапуска процесса
type Client struct {
	logger   *zap.Logger
	baseURL  string
	apiKey   string
	phone    string
	mnemonic string
	client   *http.Client

	mu    sync.RWMutex
	token string
}

// Config - параметры подключения к Fragment API
type Config struct {
	BaseURL  string
	APIKey   string
	Phone    string
	Mnemonic string
}

// NewClient создаёт новый Fragment клиент.
// Покупка звёзд может занимать минуты, поэтому общий таймаут клиента
// заметно больше обычных HTTP-вызовов
func NewClient(logger *zap.Logger, cfg Config) *Client {
	return &Client{
		logger:   logger,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		phone:    cfg.Phone,
		mnemonic: cfg.Mnemonic,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type authRequest struct {
	APIKey      string   `json:"api_key"`
	PhoneNumber string   `json:"phone_number"`
	Mnemonics   []string `json:"mnemonics"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Authenticate получает токен сессии и кэширует его в клиенте.
// Мнемоника кошелька передаётся списком слов, как ожидает API
func (c *Client) Authenticate(ctx context.Context) error {
	body := authRequest{
		APIKey:      c.apiKey,
		PhoneNumber: c.phone,
		Mnemonics:   strings.Fields(c.mnemonic),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var result authResponse
	if err := c.postJSON(ctx, "/auth", "", body, &result); err != nil {
		return fmt.Errorf("fragment authentication failed: %w", err)
	}
	if result.Token == "" {
		return fmt.Errorf("fragment authentication failed: empty token in response")
	}

	c.mu.Lock()
	c.token = result.Token
	c.mu.Unlock()

	c.logger.Info("authenticated with fragment api")
	return nil
}

type buyStarsRequest struct {
	Username   string `json:"username"`
	Quantity   int    `json:"quantity"`
	ShowSender bool   `json:"show_sender"`
}

type buyStarsResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
	Error   string `json:"error"`
}

// BuyStars покупает quantity звёзд пользователю username.
// Возвращает идентификатор заказа на стороне Fragment
func (c *Client) BuyStars(ctx context.Context, username string, quantity int, showSender bool) (string, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		return "", ErrUnauthorized
	}

	body := buyStarsRequest{
		Username:   strings.TrimPrefix(username, "@"),
		Quantity:   quantity,
		ShowSender: showSender,
	}

	c.logger.Info("buying stars",
		zap.String("username", body.Username),
		zap.Int("quantity", quantity),
		zap.Bool("show_sender", showSender),
	)

	var result buyStarsResponse
	if err := c.postJSON(ctx, "/buyStars", token, body, &result); err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("fragment rejected purchase: %s", result.Error)
	}

	return result.OrderID, nil
}

// postJSON выполняет POST с JSON-телом и декодирует JSON-ответ.
// Транспортные ошибки и таймауты заворачиваются в ErrUpstreamUnavailable,
// статус 401 - в ErrUnauthorized
func (c *Client) postJSON(ctx context.Context, path, token string, body, result interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("fragment API status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
