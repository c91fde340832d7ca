// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
)

const upperAlphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateUpperAlphanumeric draws from [A-Z0-9].
func GenerateUpperAlphanumeric(length int) (string, error) {
	return randomFrom(upperAlphanumeric, length)
}

func randomFrom(charset string, length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(charset)))

	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}
