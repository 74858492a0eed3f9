package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexusterm/server/internal/user"
)

type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"`
	TokenHash string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func GenerateTokenPair(u *user.User, secret string, db *gorm.DB) (*TokenPair, error) {
	// Access token - 15 min. The relay handshake reads name and adm.
	accessClaims := jwt.MapClaims{
		"sub":  u.ID.String(),
		"name": u.Name,
		"adm":  u.IsAdmin,
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
		"iat":  time.Now().Unix(),
	}
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessStr, err := accessToken.SignedString([]byte(secret))
	if err != nil {
		return nil, err
	}

	// Refresh token - 7 days
	refreshID := uuid.New()
	refreshStr := refreshID.String()
	hash := hashToken(refreshStr)

	rt := &RefreshToken{
		UserID:    u.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	if err := db.Create(rt).Error; err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessStr,
		RefreshToken: refreshStr,
	}, nil
}

func ValidateRefreshToken(token string, db *gorm.DB) (*RefreshToken, error) {
	hash := hashToken(token)
	var rt RefreshToken
	if err := db.Where("token_hash = ? AND expires_at > ?", hash, time.Now()).First(&rt).Error; err != nil {
		return nil, err
	}
	// Delete used refresh token (rotation)
	db.Delete(&rt)
	return &rt, nil
}

// RevokeRefreshToken deletes the token row if it exists. Best effort; an
// unknown token is not an error on logout.
func RevokeRefreshToken(token string, db *gorm.DB) {
	db.Delete(&RefreshToken{}, "token_hash = ?", hashToken(token))
}

// PruneExpiredRefreshTokens clears rows past their expiry.
func PruneExpiredRefreshTokens(db *gorm.DB) error {
	return db.Delete(&RefreshToken{}, "expires_at <= ?", time.Now()).Error
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
