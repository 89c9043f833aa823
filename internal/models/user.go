package models

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"
)

// MaxNicknameLength is the column width of users.nickname.
const MaxNicknameLength = 50

// User is a member of the community. The ID is the Telegram user ID, so it is
// assigned by the caller and never generated by the database.
type User struct {
	ID               int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Nickname         string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"nickname"`
	IsBlocked        bool      `gorm:"not null;default:false;index" json:"is_blocked"`
	RemindersEnabled bool      `gorm:"not null;default:false" json:"reminders_enabled"`
	Rating           int       `gorm:"not null;default:0" json:"rating"`
	CreatedAt        time.Time `json:"created_at"`
}

// BeforeCreate is a GORM hook that rejects rows without an identity and
// normalises the nickname before it hits the unique index.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == 0 {
		return ErrInvalidUser
	}
	u.Nickname = strings.TrimSpace(u.Nickname)
	return nil
}

// NormalizeNickname trims the input and checks that it consists only of
// letters and digits and fits the column.
func NormalizeNickname(raw string) (string, error) {
	nick := strings.TrimSpace(raw)
	if nick == "" || utf8.RuneCountInString(nick) > MaxNicknameLength {
		return "", ErrInvalidNickname
	}
	for _, r := range nick {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", ErrInvalidNickname
		}
	}
	return nick, nil
}
