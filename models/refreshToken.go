package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/google/uuid"
)

// RefreshToken is one login session. Only the sha256 of the opaque token
// is stored; the raw value is returned to the client exactly once per
// rotation.
type RefreshToken struct {
	ID        int        `gorm:"primary_key" json:"id"`
	UserId    int        `gorm:"not null;index" json:"user_id"`
	SessionId string     `gorm:"size:36;not null;uniqueIndex" json:"session_id"`
	TokenHash string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	UserAgent string     `gorm:"size:255" json:"user_agent"`
	ClientIp  string     `gorm:"size:45" json:"client_ip"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

var ErrSessionExpired = errors.New("session expired or revoked")

func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CreateRefreshToken opens a new session for the user and returns the
// session row together with the raw token.
func CreateRefreshToken(ctx context.Context, userId int, clientIp string, userAgent string) (*RefreshToken, string, error) {
	db := config.GetDB()

	raw, err := utils.GenerateOpaqueToken(48)
	if err != nil {
		return nil, "", err
	}

	session := RefreshToken{
		UserId:    userId,
		SessionId: uuid.NewString(),
		TokenHash: hashRefreshToken(raw),
		UserAgent: userAgent,
		ClientIp:  clientIp,
		ExpiresAt: time.Now().Add(config.RefreshTokenTTL()),
	}
	if err := db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, "", err
	}
	return &session, raw, nil
}

func findRefreshToken(ctx context.Context, raw string) (*RefreshToken, error) {
	db := config.GetDB()
	var session RefreshToken
	err := db.WithContext(ctx).
		Where("token_hash = ?", hashRefreshToken(raw)).
		Take(&session).Error
	if err != nil {
		return nil, ErrSessionExpired
	}
	if session.RevokedAt != nil || time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// RotateRefreshToken swaps the session's token for a fresh one. The old
// token stops working immediately; session id and creation time survive
// the rotation.
func RotateRefreshToken(ctx context.Context, raw string, clientIp string, userAgent string) (*RefreshToken, string, error) {
	db := config.GetDB()

	session, err := findRefreshToken(ctx, raw)
	if err != nil {
		return nil, "", err
	}

	newRaw, err := utils.GenerateOpaqueToken(48)
	if err != nil {
		return nil, "", err
	}

	updates := map[string]interface{}{
		"token_hash": hashRefreshToken(newRaw),
		"client_ip":  clientIp,
		"user_agent": userAgent,
		"expires_at": time.Now().Add(config.RefreshTokenTTL()),
	}
	err = db.WithContext(ctx).Model(session).Updates(updates).Error
	if err != nil {
		return nil, "", err
	}
	return session, newRaw, nil
}

func revokeRefreshToken(ctx context.Context, session *RefreshToken) error {
	db := config.GetDB()
	now := time.Now()
	return db.WithContext(ctx).Model(session).Update("revoked_at", &now).Error
}

// ListSessions returns the user's live sessions, newest first.
func ListSessions(ctx context.Context, userId int) ([]RefreshToken, error) {
	db := config.GetDB()
	var sessions []RefreshToken
	err := db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userId, time.Now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// RevokeSession revokes one of the user's sessions by session id.
func RevokeSession(ctx context.Context, userId int, sessionId string) error {
	db := config.GetDB()

	var session RefreshToken
	err := db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionId, userId).
		Take(&session).Error
	if err != nil {
		return utils.ErrorRecordNotFound
	}
	if session.RevokedAt != nil {
		return nil
	}
	if err := revokeRefreshToken(ctx, &session); err != nil {
		return err
	}
	RecordAudit(ctx, AuditActionSessionRevoked, "RefreshToken", session.ID,
		"session "+session.SessionId+" revoked")
	return nil
}

// CleanupRefreshTokens deletes sessions that expired or were revoked more
// than a day ago. Run from the background worker.
func CleanupRefreshTokens(ctx context.Context) (int64, error) {
	db := config.GetDB()
	cutoff := time.Now().Add(-24 * time.Hour)
	result := db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at < ?", cutoff, cutoff).
		Delete(&RefreshToken{})
	return result.RowsAffected, result.Error
}
