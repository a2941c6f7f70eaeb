/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/models"
)

// API key constants
const (
	APIKeyPrefix      = "hb_"
	APIKeyRandomBytes = 24
	// DefaultAPIKeyTTL covers a full season of a shop-floor tablet.
	DefaultAPIKeyTTL = 90 * 24 * time.Hour
)

var (
	ErrAPIKeyNotFound = errors.New("api key not found")
	ErrAPIKeyExpired  = errors.New("api key expired")
	ErrAPIKeyRevoked  = errors.New("api key revoked")
	ErrUserNotFound   = errors.New("user not found")
	ErrUserInactive   = errors.New("user account inactive")
)

// HashAPIKey returns the stored form of a plaintext key.
func HashAPIKey(plaintextKey string) string {
	hash := sha256.Sum256([]byte(plaintextKey))
	return hex.EncodeToString(hash[:])
}

// GenerateAPIKey creates a new API key for a user.
// Returns the plaintext key (to show to user once) and the model to store.
func GenerateAPIKey(userID, label string, expiresIn time.Duration) (string, *models.APIKey, error) {
	if expiresIn <= 0 {
		expiresIn = DefaultAPIKeyTTL
	}

	randomBytes := make([]byte, APIKeyRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, err
	}

	plaintextKey := APIKeyPrefix + hex.EncodeToString(randomBytes)

	apiKey := &models.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Label:     label,
		KeyHash:   HashAPIKey(plaintextKey),
		KeyPrefix: plaintextKey[:len(APIKeyPrefix)+8],
		ExpiresAt: time.Now().UTC().Add(expiresIn),
	}

	return plaintextKey, apiKey, nil
}

// ValidateAPIKey resolves a plaintext key to the owning staff member's claims
// and stamps LastUsedAt.
func ValidateAPIKey(db *gorm.DB, plaintextKey string) (*Claims, error) {
	if db == nil {
		return nil, ErrAPIKeyNotFound
	}

	var apiKey models.APIKey
	result := db.Where("key_hash = ?", HashAPIKey(plaintextKey)).First(&apiKey)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrAPIKeyNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	now := time.Now().UTC()
	if apiKey.RevokedAt != nil {
		return nil, ErrAPIKeyRevoked
	}
	if !apiKey.UsableAt(now) {
		return nil, ErrAPIKeyExpired
	}

	var user models.User
	result = db.First(&user, "id = ?", apiKey.UserID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	if err := db.Model(&apiKey).Update("last_used_at", now).Error; err != nil {
		return nil, err
	}

	return &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  []string{string(models.NormalizeRole(user.Role))},
	}, nil
}

// RevokeAPIKey revokes an API key. Only the owner can revoke their own keys.
func RevokeAPIKey(db *gorm.DB, keyID, userID string) error {
	result := db.Model(&models.APIKey{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", keyID, userID).
		Update("revoked_at", time.Now().UTC())

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// ListAPIKeys returns all API keys for a user, newest first.
func ListAPIKeys(db *gorm.DB, userID string) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}
