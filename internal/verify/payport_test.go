package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayportVerify_KeyMatch(t *testing.T) {
	assert.True(t, PayportVerify("secret", "secret", false, "tx-1", "ord-1"))
	assert.False(t, PayportVerify("secret", "other", false, "tx-1", "ord-1"))
	assert.False(t, PayportVerify("secret", "", false, "tx-1", "ord-1"))
	assert.False(t, PayportVerify("", "secret", false, "tx-1", "ord-1"))
}

func TestPayportVerify_TestModePassthrough(t *testing.T) {
	// Явный тестовый флаг пропускает уведомление без проверки ключа
	assert.True(t, PayportVerify("secret", "", true, "tx-1", "ord-1"))
}

func TestPayportVerify_PingWithoutIdentifiers(t *testing.T) {
	// Ping провайдера без идентификаторов пропускается,
	// но боевое уведомление хотя бы с одним идентификатором проверяется
	assert.True(t, PayportVerify("secret", "", false, "", ""))
	assert.False(t, PayportVerify("secret", "", false, "tx-1", ""))
	assert.False(t, PayportVerify("secret", "", false, "", "ord-1"))
}
