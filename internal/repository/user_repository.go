package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"github.com/Freeeeeet/tutor_market/internal/repository/base"
)

type UserRepository struct {
	db base.Querier
}

func NewUserRepository(db base.Querier) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, role, name, telegram_chat_id, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Role,
		&user.Name,
		&user.TelegramChatID,
		&user.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &user, nil
}

// GetByTelegramChat получает пользователя по привязанному Telegram-чату
func (r *UserRepository) GetByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	query := `
		SELECT id, role, name, telegram_chat_id, created_at
		FROM users
		WHERE telegram_chat_id = $1
	`

	var user model.User
	err := r.db.QueryRow(ctx, query, chatID).Scan(
		&user.ID,
		&user.Role,
		&user.Name,
		&user.TelegramChatID,
		&user.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by telegram chat: %w", err)
	}

	return &user, nil
}

// SetTelegramChat привязывает Telegram-чат к пользователю
func (r *UserRepository) SetTelegramChat(ctx context.Context, id, chatID int64) error {
	query := `UPDATE users SET telegram_chat_id = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, chatID)
	if err != nil {
		return fmt.Errorf("set telegram chat: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}
