package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Username   string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Email      *string   `gorm:"size:100;unique" json:"email"`
	Password   string    `gorm:"size:255;not null" json:"-"`
	Role       UserRole  `gorm:"type:enum('ADMIN','OPERATOR','VIEWER');default:VIEWER" json:"role"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	MfaEnabled *bool     `gorm:"not null;default:false" json:"mfa_enabled"`
	MfaSecret  string    `gorm:"size:255" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email"`
	Password string   `json:"password" binding:"required,min=8"`
	Role     UserRole `json:"role" binding:"required"`
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TotpCode string `json:"totp_code"`
}

type LoginInfo struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	SessionId    string `json:"session_id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	ExpiresIn    int    `json:"expires_in"`
}

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrMfaRequired        = errors.New("totp code required")
	ErrMfaInvalid         = errors.New("invalid totp code")
)

func (result *User) PrepareGive() {
	result.Password = ""
	result.MfaSecret = ""
}

func lockoutKey(username string, clientIp string) string {
	return fmt.Sprintf("LoginAttempts:%s:%s", username, clientIp)
}

// registerFailedLogin bumps the per username+IP failure counter and arms
// the lockout window on first failure.
func registerFailedLogin(ctx context.Context, username string, clientIp string) {
	key := lockoutKey(username, clientIp)
	count, err := config.GetRedisCounter(ctx, key)
	if err != nil {
		config.LogError(config.GetLogger(), "user", "registerFailedLogin", "redis counter failed", key, err)
		return
	}
	if count == 1 {
		// first failure arms the TTL
		if err := config.SetRedisValue(key, "1", config.LoginLockoutWindow()); err != nil {
			config.LogError(config.GetLogger(), "user", "registerFailedLogin", "redis ttl failed", key, err)
		}
	}
}

func isLockedOut(username string, clientIp string) bool {
	val, exists, err := config.GetRedisValue(lockoutKey(username, clientIp))
	if err != nil || !exists {
		return false
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return false
	}
	return count >= config.LoginLockoutThreshold()
}

func clearFailedLogins(username string, clientIp string) {
	_ = config.RemoveRedisKey(lockoutKey(username, clientIp))
}

// Login authenticates username+password (+TOTP when MFA is enabled) and
// issues a JWT access token plus a rotating refresh token. Repeated
// failures from the same username+IP lock the account for the configured
// window.
func Login(ctx context.Context, input *LoginInput, clientIp string, userAgent string) (*LoginInfo, error) {
	db := config.GetDB()

	if isLockedOut(input.Username, clientIp) {
		return nil, ErrAccountLocked
	}

	var user User
	err := db.WithContext(ctx).Where("username = ?", input.Username).Take(&user).Error
	if err != nil {
		// burn a bcrypt comparison so missing users cost the same as bad
		// passwords
		_ = utils.ComparePassword("$2a$10$0000000000000000000000000000000000000000000000000000", input.Password)
		registerFailedLogin(ctx, input.Username, clientIp)
		return nil, ErrInvalidCredentials
	}

	err = utils.ComparePassword(user.Password, input.Password)
	if err == bcrypt.ErrMismatchedHashAndPassword {
		registerFailedLogin(ctx, input.Username, clientIp)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if user.IsActive == nil || !*user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if user.MfaEnabled != nil && *user.MfaEnabled {
		if input.TotpCode == "" {
			return nil, ErrMfaRequired
		}
		if !totp.Validate(input.TotpCode, user.MfaSecret) {
			registerFailedLogin(ctx, input.Username, clientIp)
			return nil, ErrMfaInvalid
		}
	}

	clearFailedLogins(input.Username, clientIp)

	token, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	session, rawRefresh, err := CreateRefreshToken(ctx, user.ID, clientIp, userAgent)
	if err != nil {
		return nil, err
	}

	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		tokenLifespan = 1
	}

	RecordAudit(ctx, AuditActionUserLogin, "User", user.ID,
		fmt.Sprintf("user %s logged in from %s", user.Username, clientIp))

	return &LoginInfo{
		Token:        token,
		RefreshToken: rawRefresh,
		SessionId:    session.SessionId,
		Username:     user.Username,
		Name:         user.Name,
		Role:         string(user.Role),
		ExpiresIn:    tokenLifespan * 3600,
	}, nil
}

// RefreshLogin rotates the refresh token and mints a new access token.
func RefreshLogin(ctx context.Context, rawRefresh string, clientIp string, userAgent string) (*LoginInfo, error) {
	session, newRaw, err := RotateRefreshToken(ctx, rawRefresh, clientIp, userAgent)
	if err != nil {
		return nil, err
	}

	user, err := utils.FetchModel[User](ctx, session.UserId)
	if err != nil {
		return nil, err
	}
	if user.IsActive == nil || !*user.IsActive {
		return nil, ErrInvalidCredentials
	}

	token, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}

	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		tokenLifespan = 1
	}

	return &LoginInfo{
		Token:        token,
		RefreshToken: newRaw,
		SessionId:    session.SessionId,
		Username:     user.Username,
		Name:         user.Name,
		Role:         string(user.Role),
		ExpiresIn:    tokenLifespan * 3600,
	}, nil
}

// Logout revokes the session owning the presented refresh token.
func Logout(ctx context.Context, rawRefresh string) error {
	session, err := findRefreshToken(ctx, rawRefresh)
	if err != nil {
		return err
	}
	if err := revokeRefreshToken(ctx, session); err != nil {
		return err
	}
	RecordAudit(ctx, AuditActionUserLogout, "User", session.UserId, "user logged out")
	return nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB()
	var count int64

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, utils.NewValidationError("email", "invalid email address")
	}
	if _, err := ParseUserRole(string(input.Role)); err != nil {
		return nil, utils.NewValidationError("role", "invalid role")
	}

	err := db.WithContext(ctx).Model(&User{}).
		Where("username = ?", input.Username).Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewValidationError("username", "already exists")
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username:   input.Username,
		Name:       input.Name,
		Password:   string(hashedPassword),
		Role:       input.Role,
		IsActive:   utils.NewTrue(),
		MfaEnabled: utils.NewFalse(),
	}
	if input.Email != "" {
		email := strings.ToLower(input.Email)
		user.Email = &email
	}

	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	user.PrepareGive()
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	user, err := utils.FetchModel[User](ctx, id)
	if err != nil {
		return nil, err
	}
	user.PrepareGive()
	return user, nil
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}

type MfaSetupInfo struct {
	Secret     string `json:"secret"`
	OtpauthUri string `json:"otpauth_uri"`
}

// SetupMfa generates and stores a pending TOTP secret. The secret only
// becomes enforced after EnableMfa verifies a code against it.
func SetupMfa(ctx context.Context, userId int) (*MfaSetupInfo, error) {
	db := config.GetDB()

	user, err := utils.FetchModel[User](ctx, userId)
	if err != nil {
		return nil, err
	}
	if user.MfaEnabled != nil && *user.MfaEnabled {
		return nil, utils.NewValidationError("mfa", "already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "FlowStock",
		AccountName: user.Username,
	})
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Model(user).Update("mfa_secret", key.Secret()).Error; err != nil {
		return nil, err
	}

	return &MfaSetupInfo{
		Secret:     key.Secret(),
		OtpauthUri: key.URL(),
	}, nil
}

func EnableMfa(ctx context.Context, userId int, code string) error {
	db := config.GetDB()

	user, err := utils.FetchModel[User](ctx, userId)
	if err != nil {
		return err
	}
	if user.MfaSecret == "" {
		return utils.NewValidationError("mfa", "setup required first")
	}
	if !totp.Validate(code, user.MfaSecret) {
		return ErrMfaInvalid
	}

	if err := db.WithContext(ctx).Model(user).Update("mfa_enabled", true).Error; err != nil {
		return err
	}

	RecordAudit(ctx, AuditActionMfaEnabled, "User", user.ID,
		fmt.Sprintf("MFA enabled for %s", user.Username))
	return nil
}

func DisableMfa(ctx context.Context, userId int, code string) error {
	db := config.GetDB()

	user, err := utils.FetchModel[User](ctx, userId)
	if err != nil {
		return err
	}
	if user.MfaEnabled == nil || !*user.MfaEnabled {
		return utils.NewValidationError("mfa", "not enabled")
	}
	if !totp.Validate(code, user.MfaSecret) {
		return ErrMfaInvalid
	}

	err = db.WithContext(ctx).Model(user).
		Updates(map[string]interface{}{"mfa_enabled": false, "mfa_secret": ""}).Error
	if err != nil {
		return err
	}

	RecordAudit(ctx, AuditActionMfaDisabled, "User", user.ID,
		fmt.Sprintf("MFA disabled for %s", user.Username))
	return nil
}
