package model

import "time"

type User struct {
	ID             int64     `json:"id"`
	Role           ActorRole `json:"role"`
	Name           string    `json:"name"`
	TelegramChatID int64     `json:"telegram_chat_id"` // 0 если Telegram не привязан
	CreatedAt      time.Time `json:"created_at"`
}
