package verify

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newSignedFixture генерирует ключевую пару, поднимает фейковый эндпоинт раздачи
// ключей и возвращает верификатор вместе с функцией подписи тела
func newSignedFixture(t *testing.T) (*WataVerifier, func(body []byte) string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	keyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"value": pubPEM})
	}))
	t.Cleanup(keyServer.Close)

	verifier := NewWataVerifier(zap.NewNop(), keyServer.URL)

	sign := func(body []byte) string {
		digest := sha512.Sum512(body)
		sig, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA512, digest[:])
		require.NoError(t, err)
		return base64.StdEncoding.EncodeToString(sig)
	}

	return verifier, sign
}

func TestWataVerifier_ValidSignature(t *testing.T) {
	ctx := context.Background()
	verifier, sign := newSignedFixture(t)

	body := []byte(`{"transactionId":"tx-1","orderId":"ord-1","amount":100.50,"currency":"RUB"}`)
	assert.True(t, verifier.Verify(ctx, body, sign(body)))
}

func TestWataVerifier_MutatedBody(t *testing.T) {
	ctx := context.Background()
	verifier, sign := newSignedFixture(t)

	body := []byte(`{"transactionId":"tx-1","orderId":"ord-1","amount":100.50,"currency":"RUB"}`)
	signature := sign(body)

	// Любая мутация одного байта тела инвалидирует подпись
	mutated := make([]byte, len(body))
	copy(mutated, body)
	mutated[10] ^= 0x01
	assert.False(t, verifier.Verify(ctx, mutated, signature))

	// Перепарсенный и заново сериализованный JSON - тоже другое тело
	reserialized := []byte(`{"amount":100.5,"currency":"RUB","orderId":"ord-1","transactionId":"tx-1"}`)
	assert.False(t, verifier.Verify(ctx, reserialized, signature))
}

func TestWataVerifier_MutatedSignature(t *testing.T) {
	ctx := context.Background()
	verifier, sign := newSignedFixture(t)

	body := []byte(`{"transactionId":"tx-1","orderId":"ord-1","amount":1,"currency":"RUB"}`)
	signature := sign(body)

	raw, err := base64.StdEncoding.DecodeString(signature)
	require.NoError(t, err)
	raw[0] ^= 0x01
	assert.False(t, verifier.Verify(ctx, body, base64.StdEncoding.EncodeToString(raw)))
}

func TestWataVerifier_MissingSignature(t *testing.T) {
	ctx := context.Background()
	verifier, _ := newSignedFixture(t)

	// Отсутствующая подпись - отказ, не паника и не пропуск
	assert.False(t, verifier.Verify(ctx, []byte(`{}`), ""))
}

func TestWataVerifier_InvalidBase64Signature(t *testing.T) {
	ctx := context.Background()
	verifier, _ := newSignedFixture(t)

	assert.False(t, verifier.Verify(ctx, []byte(`{}`), "%%%not-base64%%%"))
}

func TestWataVerifier_KeyEndpointDown_FallsBack(t *testing.T) {
	ctx := context.Background()

	// Эндпоинт ключей недоступен - верификатор берёт резервный ключ
	verifier := NewWataVerifier(zap.NewNop(), "http://127.0.0.1:1/publickey")

	key, err := verifier.PublicKey(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, key)

	// Подпись от чужого ключа резервным ключом не проходит
	assert.False(t, verifier.Verify(ctx, []byte(`{"orderId":"ord-1"}`), base64.StdEncoding.EncodeToString([]byte("garbage"))))
}

func TestWataVerifier_KeyIsCached(t *testing.T) {
	ctx := context.Background()

	calls := 0
	keyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]string{"value": fallbackWataPublicKeyPEM})
	}))
	defer keyServer.Close()

	verifier := NewWataVerifier(zap.NewNop(), keyServer.URL)

	_, err := verifier.PublicKey(ctx)
	assert.NoError(t, err)
	_, err = verifier.PublicKey(ctx)
	assert.NoError(t, err)

	// Ключ кэшируется на время жизни процесса
	assert.Equal(t, 1, calls)
}
