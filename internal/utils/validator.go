package utils

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// ValidateUserName accepts 3-20 characters of letters, digits and underscore.
func ValidateUserName(username string) bool {
	if len(username) < 3 || len(username) > 20 {
		return false
	}
	return usernamePattern.MatchString(username)
}

func ValidatePassword(password string) bool {
	return len(password) >= 8
}

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}
