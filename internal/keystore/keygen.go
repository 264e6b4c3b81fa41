package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edvin/licensegate/internal/model"
)

const keyBytes = 32

// GenerateKey returns a URL-safe random key built from 32 bytes of entropy.
func GenerateKey() (string, error) {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewRecord builds an active record for customer with a fresh key.
func NewRecord(customer string) (*model.APIKey, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	return &model.APIKey{
		Key:       key,
		ID:        uuid.NewString(),
		Customer:  customer,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}, nil
}
