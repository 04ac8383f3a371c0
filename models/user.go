package models

import "time"

// TelegramUser is the identity carried by the `user` field of Mini App init data.
type TelegramUser struct {
	TelegramID   int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
	IsPremium    bool   `json:"is_premium"`
	PhotoURL     string `json:"photo_url"`
}

type Identity struct {
	TelegramID   int64     `json:"telegram_id" db:"telegram_id"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Username     string    `json:"username" db:"username"`
	LanguageCode string    `json:"language_code" db:"language_code"`
	IsPremium    bool      `json:"is_premium" db:"is_premium"`
	PhotoURL     string    `json:"photo_url" db:"photo_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
