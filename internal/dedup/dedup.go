package dedup

import (
	"context"
	"fmt"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Claimer --dir=. --output=./mocks --outpkg=mocks

// Claimer подавляет повторные доставки вебхуков провайдеров.
// Claim захватывает ключ уведомления: true = ключ свободен, обработку можно начинать;
// false = уведомление уже обрабатывалось, side-effect выполнять нельзя.
// Release снимает захват - вызывается только при терминальной ошибке fulfillment,
// чтобы легитимный retry провайдера мог повторить попытку.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Key собирает ключ дедупликации из имени провайдера, ID уведомления и ID заказа.
// ID заказа входит в ключ, чтобы захват закрывал и гонку двух разных уведомлений
// по одному заказу, а не только повтор одного уведомления.
func Key(provider, notificationID, orderID string) string {
	return fmt.Sprintf("%s:%s:%s", provider, notificationID, orderID)
}
