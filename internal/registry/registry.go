package registry

import (
	"context"
	"errors"
	"time"
)

// Intent представляет намерение покупки звёзд, созданное в момент выдачи
// пользователю платёжной ссылки. Коррелируется с вебхуком провайдера по OrderID.
type Intent struct {
	// OrderID уникальный идентификатор заказа, генерируется на стороне бота
	OrderID string
	// RequesterID Telegram ID пользователя, оформившего заказ
	RequesterID int64
	// Quantity количество звёзд (не меньше минимума провайдера)
	Quantity int
	// IsGift заказ оформлен в подарок
	IsGift bool
	// GiftRecipient username получателя подарка (без @), может быть пустым
	GiftRecipient string
	// Description свободное описание заказа
	Description string
	// CreatedAt время создания намерения
	CreatedAt time.Time
}

// ErrNotFound возвращается, когда намерение заказа не найдено в хранилище
var ErrNotFound = errors.New("order intent not found")

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Registry --dir=. --output=./mocks --outpkg=mocks

// Registry определяет интерфейс хранилища намерений заказов.
// Put перезаписывает существующий заказ (last write wins), Remove идемпотентен.
// Намерение живёт до явного удаления: TTL у заказов нет.
type Registry interface {
	// Put сохраняет намерение заказа
	Put(ctx context.Context, intent Intent) error

	// Get возвращает намерение по ID заказа.
	// Возвращает ErrNotFound, если заказ не найден
	Get(ctx context.Context, orderID string) (Intent, error)

	// Remove удаляет намерение. Удаление отсутствующего заказа не ошибка
	Remove(ctx context.Context, orderID string) error
}
