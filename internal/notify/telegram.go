package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"github.com/Freeeeeet/tutor_market/internal/repository"
	"github.com/Freeeeeet/tutor_market/internal/service"
	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// Notifier получает результат перехода после коммита. Любая отправка —
// best-effort: ядро бронирований о ней не знает и на неё не ждёт.
type Notifier interface {
	BookingTransition(ctx context.Context, result *service.TransitionResult)
}

// TelegramNotifier шлёт уведомления о переходах в привязанные Telegram-чаты
type TelegramNotifier struct {
	bot    *bot.Bot
	users  *repository.UserRepository
	logger *zap.Logger
}

func NewTelegramNotifier(b *bot.Bot, users *repository.UserRepository, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:    b,
		users:  users,
		logger: logger,
	}
}

// BookingTransition уведомляет обе стороны бронирования о смене статуса
func (n *TelegramNotifier) BookingTransition(ctx context.Context, result *service.TransitionResult) {
	booking := result.Booking

	n.send(ctx, booking.StudentID, studentText(result))
	n.send(ctx, booking.TeacherID, teacherText(result))
}

func (n *TelegramNotifier) send(ctx context.Context, userID int64, text string) {
	if text == "" {
		return
	}

	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		n.logger.Warn("Failed to load user for notification", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	if user == nil || user.TelegramChatID == 0 {
		// Telegram не привязан — уведомление просто не доставляется
		return
	}

	_, err = n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: user.TelegramChatID,
		Text:   text,
	})
	if err != nil {
		n.logger.Warn("Failed to send notification",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}

func studentText(result *service.TransitionResult) string {
	b := result.Booking

	switch result.NewStatus {
	case model.BookingStatusPreApproved:
		return fmt.Sprintf("⏳ Ваша заявка №%d предварительно одобрена учителем.", b.ID)
	case model.BookingStatusConfirmed:
		return fmt.Sprintf("✅ Ваша запись №%d подтверждена! Место за вами.", b.ID)
	case model.BookingStatusApproved:
		return fmt.Sprintf("🎉 Ваша запись №%d окончательно одобрена.", b.ID)
	case model.BookingStatusRejected:
		if b.RejectionReason != "" {
			return fmt.Sprintf("❌ Ваша заявка №%d отклонена: %s", b.ID, b.RejectionReason)
		}
		return fmt.Sprintf("❌ Ваша заявка №%d отклонена учителем.", b.ID)
	case model.BookingStatusCancelled:
		if b.CancelledBy == model.ActorTeacher {
			return fmt.Sprintf("🚫 Ваша запись №%d отменена учителем.", b.ID)
		}
		return fmt.Sprintf("🚫 Ваша запись №%d отменена.", b.ID)
	case model.BookingStatusPending:
		if result.PreviousStatus == model.BookingStatusCancelled {
			return fmt.Sprintf("🔄 Ваша запись №%d снова активна и ожидает рассмотрения.", b.ID)
		}
	}

	return ""
}

func teacherText(result *service.TransitionResult) string {
	b := result.Booking

	switch result.NewStatus {
	case model.BookingStatusCancelled:
		if b.CancelledBy == model.ActorStudent {
			return fmt.Sprintf("🚫 Студент отменил запись №%d. Место освобождено.", b.ID)
		}
	case model.BookingStatusPending:
		if result.PreviousStatus == model.BookingStatusCancelled {
			return fmt.Sprintf("🔄 Запись №%d реактивирована студентом и ожидает рассмотрения.", b.ID)
		}
	}

	return ""
}
