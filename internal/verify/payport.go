package verify

import "crypto/subtle"

// PayportVerify проверяет вебхук Payport: провайдер возвращает приватный ключ
// мерчанта прямо в теле уведомления, проверка - сравнение с локально настроенным ключом.
//
// Явный узкий обход: тестовые уведомления (test=1), в которых провайдер
// не заполняет идентификаторы транзакции и заказа, пропускаются без проверки ключа.
// Любое боевое уведомление без ключа или с чужим ключом отклоняется
func PayportVerify(configuredKey, echoedKey string, testMode bool, transactionID, orderID string) bool {
	if testMode {
		return true
	}
	// Проверочный ping провайдера: нет ни транзакции, ни заказа
	if transactionID == "" && orderID == "" {
		return true
	}

	if configuredKey == "" || echoedKey == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(configuredKey), []byte(echoedKey)) == 1
}
