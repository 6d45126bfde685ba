package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// HashSecret bcrypt hash of a shared secret such as the worker key
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func MatchSecret(secret, hashed string) bool {
	if secret == "" || hashed == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret))
	return err == nil
}
