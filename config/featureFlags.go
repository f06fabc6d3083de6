package config

import (
	"os"
	"strings"
	"time"
)

// IdempotencyEnabled gates replay protection on mutating order endpoints.
//
// Set via env:
// - IDEMPOTENCY_ENABLED=true (default true; set to false/0/no to disable)
func IdempotencyEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("IDEMPOTENCY_ENABLED")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// IdempotencyTTL is how long a stored idempotent response stays replayable.
//
// Set via env:
// - IDEMPOTENCY_TTL_HOURS (default 24)
func IdempotencyTTL() time.Duration {
	return time.Duration(intFromEnv("IDEMPOTENCY_TTL_HOURS", 24)) * time.Hour
}

// AuditRetentionDays is the audit log retention window in days.
// Values below 1 are clamped to 1.
//
// Set via env:
// - AUDIT_RETENTION_DAYS (default 365)
func AuditRetentionDays() int {
	days := intFromEnv("AUDIT_RETENTION_DAYS", 365)
	if days < 1 {
		days = 1
	}
	return days
}

// LoginLockoutThreshold is the number of consecutive failed logins that
// locks an account for LoginLockoutWindow.
//
// Set via env:
// - LOGIN_LOCKOUT_THRESHOLD (default 5)
func LoginLockoutThreshold() int {
	return intFromEnv("LOGIN_LOCKOUT_THRESHOLD", 5)
}

// LoginLockoutWindow is how long an account stays locked after too many
// failed logins.
//
// Set via env:
// - LOGIN_LOCKOUT_MINUTES (default 15)
func LoginLockoutWindow() time.Duration {
	return time.Duration(intFromEnv("LOGIN_LOCKOUT_MINUTES", 15)) * time.Minute
}

// RefreshTokenTTL is the lifetime of a refresh token.
//
// Set via env:
// - REFRESH_TOKEN_TTL_HOURS (default 720, i.e. 30 days)
func RefreshTokenTTL() time.Duration {
	return time.Duration(intFromEnv("REFRESH_TOKEN_TTL_HOURS", 720)) * time.Hour
}

// PasswordResetTokenTTL is the lifetime of a password reset token.
//
// Set via env:
// - PASSWORD_RESET_TTL_MINUTES (default 30)
func PasswordResetTokenTTL() time.Duration {
	return time.Duration(intFromEnv("PASSWORD_RESET_TTL_MINUTES", 30)) * time.Minute
}
