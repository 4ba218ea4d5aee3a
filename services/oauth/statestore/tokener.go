package statestore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

//go:generate mockgen -source=tokener.go -package statestore -destination tokener_mock.go RandomTokener
type RandomTokener interface {
	Create() (string, error)
}

type randomTokener struct {
}

func NewRandomTokener() RandomTokener {
	return &randomTokener{}
}

// Create returns 256 bits of randomness in hex.
func (s randomTokener) Create() (string, error) {
	return randomBytesInHex(32)
}

func randomBytesInHex(count int) (string, error) {
	buf := make([]byte, count)

	_, err := io.ReadFull(rand.Reader, buf)
	if err != nil {
		return "", fmt.Errorf("could not generate random %d bytes: %v", count, err)
	}

	return hex.EncodeToString(buf), nil
}
