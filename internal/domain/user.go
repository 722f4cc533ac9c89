// Package domain contains entities without logic, just meta-data
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
	DefaultName    = "guest"
)

var (
	ErrUsernameTooLong = New(CodeInvalidName, "username too long")
	ErrUsernameEmpty   = New(CodeInvalidName, "username empty")
)

type PlayerID string

// NewPlayerID returns a fresh random player identity.
func NewPlayerID() PlayerID {
	return PlayerID(uuid.NewString())
}

// NormalizeUsername trims the name and checks its bounds.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return "", ErrUsernameEmpty
	}
	if utf8.RuneCountInString(username) > MaxUsernameLen {
		return "", ErrUsernameTooLong.WithContext("max", MaxUsernameLen)
	}
	return username, nil
}
