package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/brianDahlin/Star-driver/internal/telegram"
)

// TelegramNotifier отправляет пользователю сообщения об исходе заказа
// через Telegram. Чат пользователя - это его собственный ID
type TelegramNotifier struct {
	logger *zap.Logger
	sender telegram.Sender
}

// NewTelegramNotifier создаёт новый notifier
func NewTelegramNotifier(logger *zap.Logger, sender telegram.Sender) *TelegramNotifier {
	return &TelegramNotifier{
		logger: logger,
		sender: sender,
	}
}

// NotifySuccess уведомляет об успешной покупке звёзд
func (n *TelegramNotifier) NotifySuccess(ctx context.Context, requesterID int64, quantity int, isGift bool, recipient, externalOrderID string) error {
	var b strings.Builder
	if isGift {
		b.WriteString(fmt.Sprintf("🎁 Подарок отправлен!\n%d ⭐ получит @%s\n", quantity, strings.TrimPrefix(recipient, "@")))
	} else {
		b.WriteString(fmt.Sprintf("✅ Оплата прошла успешно!\n%d ⭐ уже летят на ваш аккаунт\n", quantity))
	}
	if externalOrderID != "" {
		b.WriteString(fmt.Sprintf("Номер заказа: %s\n", externalOrderID))
	}
	b.WriteString("Спасибо за покупку!")

	return n.send(ctx, requesterID, b.String())
}

// NotifyFailure уведомляет о неудачной выдаче звёзд после оплаты
func (n *TelegramNotifier) NotifyFailure(ctx context.Context, requesterID int64, quantity int, isGift bool, errorDetail string) error {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚠️ Оплата получена, но выдать %d ⭐ пока не удалось.\n", quantity))
	b.WriteString("Мы уже разбираемся, звёзды придут после повторной попытки.\n")
	b.WriteString("Если ничего не изменится - напишите в поддержку.")

	n.logger.Debug("sending failure notification",
		zap.Int64("requester_id", requesterID),
		zap.String("error_detail", errorDetail),
	)
	return n.send(ctx, requesterID, b.String())
}

// NotifyDeclined уведомляет об отклонённом платеже
func (n *TelegramNotifier) NotifyDeclined(ctx context.Context, requesterID int64, orderID string) error {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("❌ Платёж по заказу %s отклонён.\n", orderID))
	b.WriteString("Деньги не списаны, заказ можно оплатить заново.")

	return n.send(ctx, requesterID, b.String())
}

func (n *TelegramNotifier) send(ctx context.Context, requesterID int64, text string) error {
	chatID := strconv.FormatInt(requesterID, 10)
	if err := n.sender.Send(ctx, chatID, text); err != nil {
		return fmt.Errorf("failed to notify user %d: %w", requesterID, err)
	}
	return nil
}
