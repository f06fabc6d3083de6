package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
)

type PasswordResetToken struct {
	ID        int        `gorm:"primary_key" json:"id"`
	UserId    int        `gorm:"not null;index" json:"user_id"`
	TokenHash string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

var ErrResetTokenInvalid = errors.New("invalid or expired reset token")

// RequestPasswordReset issues a single-use reset token for the account
// behind the username. The caller is expected to deliver the raw token
// out of band; an unknown username returns an empty token without error
// so the endpoint does not leak which accounts exist.
func RequestPasswordReset(ctx context.Context, username string) (string, error) {
	db := config.GetDB()

	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil
	}

	raw, err := utils.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}

	token := PasswordResetToken{
		UserId:    user.ID,
		TokenHash: hashRefreshToken(raw),
		ExpiresAt: time.Now().Add(config.PasswordResetTokenTTL()),
	}
	if err := db.WithContext(ctx).Create(&token).Error; err != nil {
		return "", err
	}
	return raw, nil
}

// ConfirmPasswordReset consumes a reset token, sets the new password and
// revokes every live session of the account.
func ConfirmPasswordReset(ctx context.Context, raw string, newPassword string) error {
	db := config.GetDB()

	if len(newPassword) < 8 {
		return utils.NewValidationError("password", "must be at least 8 characters")
	}

	var token PasswordResetToken
	err := db.WithContext(ctx).
		Where("token_hash = ?", hashRefreshToken(raw)).
		Take(&token).Error
	if err != nil {
		return ErrResetTokenInvalid
	}
	if token.UsedAt != nil || time.Now().After(token.ExpiresAt) {
		return ErrResetTokenInvalid
	}

	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}

	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()
	if err := tx.Model(&token).Update("used_at", &now).Error; err != nil {
		tx.Rollback()
		return err
	}
	err = tx.Model(&User{}).Where("id = ?", token.UserId).
		Update("password", string(hashed)).Error
	if err != nil {
		tx.Rollback()
		return err
	}
	// a password reset invalidates every open session
	err = tx.Model(&RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", token.UserId).
		Update("revoked_at", &now).Error
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	RecordAudit(ctx, AuditActionPasswordReset, "User", token.UserId,
		fmt.Sprintf("password reset for user %d", token.UserId))
	return nil
}

// CleanupPasswordResetTokens removes used and expired tokens.
func CleanupPasswordResetTokens(ctx context.Context) (int64, error) {
	db := config.GetDB()
	result := db.WithContext(ctx).
		Where("used_at IS NOT NULL OR expires_at < ?", time.Now()).
		Delete(&PasswordResetToken{})
	return result.RowsAffected, result.Error
}
