package verify

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fallbackWataPublicKeyPEM - резервный публичный ключ WATA.
// Используется, если эндпоинт раздачи ключей недоступен на момент первой проверки
const fallbackWataPublicKeyPEM = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAoFM4j6Atx3is5Z1S+NGq
NhGajfIUgnMDBjIPnQ6dXmk7oKBNHiCfqn6D8z61sIOLq53gLTU9ZhmBFJBnUj5f
V+QLvZ++Fpz9fsK+FoNPauXVp+kV9wYszaopDB/g+GoxeHEU9fxe2FSRacbqHs7k
b0Nef0TJsPRgsj8+zx9OqYjGuH+MW/hyk1DHVO25fN60TR8fbRfPMzDczaicIyxP
5vf9dh36iW/Ae0BffI1nsAkfK5PK+n7X/BaDr2tCq/EanrWdraJHmcEqJua0rhnh
1uxiqb25d4NHyM/8+T6rZ9POzL7KCYEk6iTODKo1zOPbS3Dbi0p5YDxZnbzbzwiQ
KwIDAQAB
-----END PUBLIC KEY-----`

const keyFetchTimeout = 5 * time.Second

// WataVerifier проверяет RSA подпись вебхуков WATA.
// Подпись считается по точным байтам тела запроса (не по перепарсенному JSON:
// повторная сериализация меняет порядок ключей и форматирование чисел).
// Публичный ключ запрашивается у провайдера при первой проверке и кэшируется
// на время жизни процесса; при недоступности эндпоинта берётся резервный ключ
type WataVerifier struct {
	logger *zap.Logger
	keyURL string
	client *http.Client

	mu     sync.Mutex
	cached *rsa.PublicKey
}

// NewWataVerifier создаёт новый верификатор вебхуков WATA
func NewWataVerifier(logger *zap.Logger, keyURL string) *WataVerifier {
	return &WataVerifier{
		logger: logger,
		keyURL: keyURL,
		client: &http.Client{
			Timeout: keyFetchTimeout,
		},
	}
}

// Verify проверяет подпись signatureB64 (base64) над точными байтами body.
// Отсутствующая или невалидная подпись - это отказ, не ошибка: возвращает false
func (v *WataVerifier) Verify(ctx context.Context, body []byte, signatureB64 string) bool {
	if signatureB64 == "" {
		v.logger.Warn("wata webhook without signature header")
		return false
	}

	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		v.logger.Warn("wata signature is not valid base64", zap.Error(err))
		return false
	}

	publicKey, err := v.PublicKey(ctx)
	if err != nil {
		v.logger.Error("failed to obtain wata public key", zap.Error(err))
		return false
	}

	// SHA-512 digest считаем сами, VerifyPKCS1v15 ожидает уже захэшированное тело
	digest := sha512.Sum512(body)
	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA512, digest[:], signature); err != nil {
		return false
	}

	return true
}

// wataKeyResponse - ответ эндпоинта раздачи ключей WATA
type wataKeyResponse struct {
	Value string `json:"value"`
}

// PublicKey возвращает публичный ключ WATA: кэш -> эндпоинт провайдера -> резервный ключ.
// Результат (включая резервный ключ) кэшируется на время жизни процесса
func (v *WataVerifier) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cached != nil {
		return v.cached, nil
	}

	key, err := v.fetchKey(ctx)
	if err != nil {
		v.logger.Warn("wata key endpoint unavailable, using fallback public key", zap.Error(err))
		key, err = parsePublicKeyPEM(fallbackWataPublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("fallback wata public key is corrupted: %w", err)
		}
	}

	v.cached = key
	return key, nil
}

// fetchKey запрашивает публичный ключ у эндпоинта провайдера
func (v *WataVerifier) fetchKey(ctx context.Context) (*rsa.PublicKey, error) {
	ctx, cancel := context.WithTimeout(ctx, keyFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.keyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create key request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wata public key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wata key endpoint status %d", resp.StatusCode)
	}

	var keyResp wataKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&keyResp); err != nil {
		return nil, fmt.Errorf("failed to decode key response: %w", err)
	}

	key, err := parsePublicKeyPEM(keyResp.Value)
	if err != nil {
		return nil, fmt.Errorf("wata key endpoint returned invalid key: %w", err)
	}

	v.logger.Info("wata public key fetched and cached")
	return key, nil
}

// parsePublicKeyPEM парсит RSA публичный ключ из PEM (PKIX)
func parsePublicKeyPEM(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}

	return rsaKey, nil
}
