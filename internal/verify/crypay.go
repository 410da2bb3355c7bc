package verify

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
)

// Подписи Crypay: входящий вебхук и исходящее создание платежа используют
// РАЗНЫЕ хэш-функции (SHA-256 и SHA-512). Это контракт провайдера,
// операции не объединять.

// CrypaySignWebhook считает подпись входящего вебхука:
// hex SHA-256 над конкатенацией apiKey + transactionID + orderID + amount + currency.
// Сумма всегда форматируется с двумя знаками после запятой ("10" -> "10.00")
func CrypaySignWebhook(apiKey, transactionID, orderID string, amount float64, currency string) string {
	payload := apiKey + transactionID + orderID + formatAmount(amount) + currency
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// CrypaySignPayment считает подпись исходящего запроса на создание платежа:
// hex SHA-512 над конкатенацией apiKey + orderID + amount + currency
func CrypaySignPayment(apiKey, orderID string, amount float64, currency string) string {
	payload := apiKey + orderID + formatAmount(amount) + currency
	sum := sha512.Sum512([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// CrypayVerifyWebhook проверяет подпись входящего вебхука Crypay.
// Отсутствие обязательных полей - отказ до каких-либо хэш-вычислений.
// Сравнение с подписью провайдера регистронезависимое
func CrypayVerifyWebhook(apiKey, transactionID, orderID string, amount float64, currency, signature string) bool {
	if transactionID == "" || orderID == "" || currency == "" || signature == "" {
		return false
	}

	expected := CrypaySignWebhook(apiKey, transactionID, orderID, amount, currency)
	return strings.EqualFold(expected, signature)
}

// formatAmount приводит сумму к виду с ровно двумя знаками после запятой
func formatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}
