package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"github.com/Freeeeeet/tutor_market/internal/notify"
	"github.com/Freeeeeet/tutor_market/internal/repository"
	"github.com/Freeeeeet/tutor_market/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// BotController — тонкая Telegram-поверхность над ядром бронирований.
// Вся бизнес-логика живёт в сервисах; контроллер только разбирает команды,
// вызывает переходы и отдаёт результат в notifier.
type BotController struct {
	bot            *bot.Bot
	bookingService *service.BookingService
	usageService   *service.UsageLogService
	users          *repository.UserRepository
	notifier       notify.Notifier
	logger         *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	bookingService *service.BookingService,
	usageService *service.UsageLogService,
	users *repository.UserRepository,
	notifier notify.Notifier,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:            botInstance,
		bookingService: bookingService,
		usageService:   usageService,
		users:          users,
		notifier:       notifier,
		logger:         logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/link", bot.MatchTypePrefix, c.handleLink)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/mybookings", bot.MatchTypeExact, c.handleMyBookings)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/requests", bot.MatchTypeExact, c.handleRequests)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/confirm_", bot.MatchTypePrefix, c.handleConfirm)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/reject_", bot.MatchTypePrefix, c.handleReject)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel_", bot.MatchTypePrefix, c.handleCancel)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/reactivate_", bot.MatchTypePrefix, c.handleReactivate)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/usage", bot.MatchTypeExact, c.handleUsage)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "link", Description: "🔗 Привязать аккаунт: /link <id>"},
		{Command: "mybookings", Description: "📅 Мои записи (студент)"},
		{Command: "requests", Description: "📨 Заявки на записи (учитель)"},
		{Command: "usage", Description: "📊 Статистика мест (учитель)"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
}

func (c *BotController) reply(ctx context.Context, chatID int64, text string) {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		c.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// resolveUser находит пользователя маркетплейса по Telegram-чату
func (c *BotController) resolveUser(ctx context.Context, chatID int64) *model.User {
	user, err := c.users.GetByTelegramChat(ctx, chatID)
	if err != nil {
		c.logger.Error("Failed to resolve user", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil
	}
	return user
}

func (c *BotController) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	c.reply(ctx, update.Message.Chat.ID,
		"👋 Привет! Это бот уведомлений маркетплейса занятий.\n\n"+
			"Привяжите свой аккаунт командой /link <ваш id>.\n\n"+
			"Студентам:\n"+
			"/mybookings - мои записи\n"+
			"/cancel_<id> - отменить запись\n"+
			"/reactivate_<id> - вернуть отменённую запись\n\n"+
			"Учителям:\n"+
			"/requests - заявки на записи\n"+
			"/confirm_<id> - подтвердить запись\n"+
			"/reject_<id> - отклонить заявку\n"+
			"/usage - статистика мест")
}

func (c *BotController) handleLink(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	parts := strings.Fields(update.Message.Text)
	if len(parts) != 2 {
		c.reply(ctx, chatID, "Использование: /link <ваш id>")
		return
	}

	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		c.reply(ctx, chatID, "❌ Некорректный id.")
		return
	}

	if err := c.users.SetTelegramChat(ctx, userID, chatID); err != nil {
		c.logger.Warn("Failed to link telegram chat", zap.Int64("user_id", userID), zap.Error(err))
		c.reply(ctx, chatID, "❌ Не удалось привязать аккаунт. Проверьте id.")
		return
	}

	c.reply(ctx, chatID, "✅ Аккаунт привязан. Уведомления будут приходить сюда.")
}

func (c *BotController) handleMyBookings(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user := c.resolveUser(ctx, chatID)
	if user == nil {
		c.reply(ctx, chatID, "Сначала привяжите аккаунт: /link <ваш id>")
		return
	}

	bookings, err := c.bookingService.FindAllByStudent(ctx, user.ID, 20, 0)
	if err != nil {
		c.logger.Error("Failed to list student bookings", zap.Int64("student_id", user.ID), zap.Error(err))
		c.reply(ctx, chatID, "❌ Не удалось получить записи.")
		return
	}

	if len(bookings) == 0 {
		c.reply(ctx, chatID, "У вас пока нет записей.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📅 Ваши записи:\n\n")
	for _, booking := range bookings {
		fmt.Fprintf(&sb, "№%d — курс %d, статус: %s\n", booking.ID, booking.CourseID, booking.Status)
	}
	c.reply(ctx, chatID, sb.String())
}

func (c *BotController) handleRequests(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user := c.resolveUser(ctx, chatID)
	if user == nil || user.Role != model.ActorTeacher {
		c.reply(ctx, chatID, "Команда доступна только учителям с привязанным аккаунтом.")
		return
	}

	bookings, err := c.bookingService.FindAllByTeacher(ctx, user.ID, 50, 0)
	if err != nil {
		c.logger.Error("Failed to list teacher bookings", zap.Int64("teacher_id", user.ID), zap.Error(err))
		c.reply(ctx, chatID, "❌ Не удалось получить заявки.")
		return
	}

	var sb strings.Builder
	count := 0
	for _, booking := range bookings {
		if booking.Status != model.BookingStatusPending && booking.Status != model.BookingStatusPreApproved {
			continue
		}
		count++
		fmt.Fprintf(&sb, "№%d — студент %d, статус: %s\n/confirm_%d /reject_%d\n\n",
			booking.ID, booking.StudentID, booking.Status, booking.ID, booking.ID)
	}

	if count == 0 {
		c.reply(ctx, chatID, "Новых заявок нет.")
		return
	}
	c.reply(ctx, chatID, "📨 Заявки на записи:\n\n"+sb.String())
}

func (c *BotController) handleConfirm(ctx context.Context, b *bot.Bot, update *models.Update) {
	c.transition(ctx, update, model.BookingStatusConfirmed, "/confirm_")
}

func (c *BotController) handleReject(ctx context.Context, b *bot.Bot, update *models.Update) {
	c.transition(ctx, update, model.BookingStatusRejected, "/reject_")
}

// transition выполняет переход со стороны учителя и рассылает уведомления
func (c *BotController) transition(ctx context.Context, update *models.Update, target model.BookingStatus, prefix string) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user := c.resolveUser(ctx, chatID)
	if user == nil || user.Role != model.ActorTeacher {
		c.reply(ctx, chatID, "Команда доступна только учителям с привязанным аккаунтом.")
		return
	}

	bookingID, err := strconv.ParseInt(strings.TrimPrefix(update.Message.Text, prefix), 10, 64)
	if err != nil {
		c.reply(ctx, chatID, "❌ Некорректный номер записи.")
		return
	}

	result, err := c.bookingService.UpdateStatus(ctx, bookingID, user.ID, service.UpdateStatusInput{Status: target})
	if err != nil {
		c.reply(ctx, chatID, transitionErrorText(err))
		return
	}

	c.reply(ctx, chatID, fmt.Sprintf("✅ Запись №%d: %s → %s", bookingID, result.PreviousStatus, result.NewStatus))
	c.notifier.BookingTransition(ctx, result)
}

func (c *BotController) handleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user := c.resolveUser(ctx, chatID)
	if user == nil {
		c.reply(ctx, chatID, "Сначала привяжите аккаунт: /link <ваш id>")
		return
	}

	bookingID, err := strconv.ParseInt(strings.TrimPrefix(update.Message.Text, "/cancel_"), 10, 64)
	if err != nil {
		c.reply(ctx, chatID, "❌ Некорректный номер записи.")
		return
	}

	var result *service.TransitionResult
	if user.Role == model.ActorTeacher {
		result, err = c.bookingService.CancelByTeacher(ctx, bookingID, user.ID, "")
	} else {
		result, err = c.bookingService.CancelByStudent(ctx, bookingID, user.ID, "")
	}
	if err != nil {
		c.reply(ctx, chatID, transitionErrorText(err))
		return
	}

	c.reply(ctx, chatID, fmt.Sprintf("🚫 Запись №%d отменена.", bookingID))
	c.notifier.BookingTransition(ctx, result)
}

func (c *BotController) handleReactivate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user := c.resolveUser(ctx, chatID)
	if user == nil {
		c.reply(ctx, chatID, "Сначала привяжите аккаунт: /link <ваш id>")
		return
	}

	bookingID, err := strconv.ParseInt(strings.TrimPrefix(update.Message.Text, "/reactivate_"), 10, 64)
	if err != nil {
		c.reply(ctx, chatID, "❌ Некорректный номер записи.")
		return
	}

	result, err := c.bookingService.Reactivate(ctx, bookingID, user.ID)
	if err != nil {
		c.reply(ctx, chatID, transitionErrorText(err))
		return
	}

	text := fmt.Sprintf("🔄 Запись №%d снова активна и ожидает рассмотрения.", bookingID)
	if result.CourseEndedWarning {
		text += "\n⚠️ Обратите внимание: курс уже закончился."
	}
	c.reply(ctx, chatID, text)
	c.notifier.BookingTransition(ctx, result)
}

func (c *BotController) handleUsage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user := c.resolveUser(ctx, chatID)
	if user == nil || user.Role != model.ActorTeacher {
		c.reply(ctx, chatID, "Команда доступна только учителям с привязанным аккаунтом.")
		return
	}

	stats, err := c.usageService.GetTeacherUsageStats(ctx, user.ID)
	if err != nil {
		c.logger.Error("Failed to get usage stats", zap.Int64("teacher_id", user.ID), zap.Error(err))
		c.reply(ctx, chatID, "❌ Не удалось получить статистику.")
		return
	}

	text := fmt.Sprintf(
		"📊 Статистика мест\n\n"+
			"Занято: %d из %d\n\n"+
			"Подтверждений: %d\n"+
			"Отклонений: %d\n"+
			"Отмен: %d\n"+
			"Реактиваций: %d",
		stats.Capacity.CurrentStudents, stats.Capacity.MaxStudents,
		stats.Actions[model.UsageActionApproved],
		stats.Actions[model.UsageActionRejected],
		stats.Actions[model.UsageActionCancelled],
		stats.Actions[model.UsageActionReactivated],
	)
	c.reply(ctx, chatID, text)
}

// transitionErrorText маппит ошибки ядра на понятные пользователю сообщения
func transitionErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrBookingNotFound):
		return "❌ Запись не найдена."
	case errors.Is(err, service.ErrAccessDenied):
		return "❌ Эта запись принадлежит другому пользователю."
	case errors.Is(err, service.ErrNoActiveSubscription):
		return "❌ У вас нет активной подписки."
	case errors.Is(err, service.ErrSubscriptionExpired):
		return "❌ Срок действия подписки истёк."
	case errors.Is(err, service.ErrCapacityExceeded):
		return "❌ Все места по подписке заняты."
	case errors.Is(err, service.ErrInvalidTransition):
		return "❌ Этот переход статуса недоступен: " + err.Error()
	case errors.Is(err, service.ErrReactivationWrongStatus):
		return "❌ Реактивировать можно только отменённую запись."
	case errors.Is(err, service.ErrReactivationTeacherCancelled):
		return "❌ Запись отменена учителем и не может быть реактивирована."
	case errors.Is(err, service.ErrReactivationCourseGone):
		return "❌ Курс больше недоступен."
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}
