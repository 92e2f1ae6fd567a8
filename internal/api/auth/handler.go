package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/app/http/httpx"
	"voiceclone-backend/internal/domain/access"
	"voiceclone-backend/internal/domain/users"
	"voiceclone-backend/internal/pkg/jwt"
)

// Backfiller attaches the free subscription to a user who has none.
type Backfiller interface {
	EnsureFree(ctx context.Context, userID uint) error
}

type TokenStore interface {
	SaveOTP(ctx context.Context, email, code string, ttl time.Duration) error
	ConsumeOTP(ctx context.Context, email, code string) (bool, error)
	SaveRefresh(ctx context.Context, jti string, userID uint, ttl time.Duration) error
	RefreshOwner(ctx context.Context, jti string) (uint, bool, error)
	RevokeRefresh(ctx context.Context, jti string) error
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	OTPTTL        time.Duration
}

type Handler struct {
	db     *gorm.DB
	subs   Backfiller
	tokens TokenStore
	mailer Mailer
	cfg    Config
	google *Google
	log    *slog.Logger
}

// NewHandler wires the auth endpoints. mailer may be nil, in which case
// one-time codes are stored but not delivered.
func NewHandler(db *gorm.DB, subs Backfiller, tokens TokenStore, mailer Mailer, cfg Config, log *slog.Logger) *Handler {
	return &Handler{db: db, subs: subs, tokens: tokens, mailer: mailer, cfg: cfg, log: log}
}

// WithGoogle enables the Google sign-in endpoints.
func (h *Handler) WithGoogle(g *Google) *Handler {
	h.google = g
	return h
}

type UserDTO struct {
	ID           uint        `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         access.Role `json:"role"`
	AuthProvider string      `json:"authProvider"`
	IsVerified   bool        `json:"isVerified"`
}

func toUserDTO(u *users.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Principal().Role,
		AuthProvider: u.AuthProvider,
		IsVerified:   u.IsVerified,
	}
}

func isPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, c := range password {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			hasLetter = true
		case '0' <= c && c <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateOTP returns a four digit code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", 1000+n.Int64()), nil
}

var errWeakPassword = apperr.Validation("Password must be at least 8 characters long and contain both letters and numbers")

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required,max=120"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}
	if !isPasswordStrong(input.Password) {
		httpx.Fail(c, errWeakPassword)
		return
	}

	ctx := c.Request.Context()
	email := normalizeEmail(input.Email)

	var count int64
	if err := h.db.WithContext(ctx).Model(&users.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		httpx.Fail(c, apperr.Internal("failed to check email", err))
		return
	}
	if count > 0 {
		httpx.Fail(c, apperr.Conflict("Email already registered"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.Fail(c, apperr.Internal("Failed to hash password", err))
		return
	}
	password := string(hashed)

	user := users.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		Password:     &password,
		AuthProvider: users.ProviderLocal,
		Role:         access.RoleUser,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		httpx.Fail(c, apperr.Internal("Failed to create user", err))
		return
	}
	if err := h.subs.EnsureFree(ctx, user.ID); err != nil {
		httpx.Fail(c, err)
		return
	}
	h.sendOTP(ctx, email)

	h.log.Info("user registered", "user_id", user.ID)
	h.respondWithTokens(c, http.StatusCreated, &user, "User registered successfully. OTP sent to email.")
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	var user users.User
	err := h.db.WithContext(ctx).Where("email = ?", normalizeEmail(input.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.Fail(c, apperr.Unauthorized("Invalid email or password"))
		return
	}
	if err != nil {
		httpx.Fail(c, apperr.Internal("failed to load user", err))
		return
	}
	if user.Password == nil {
		httpx.Fail(c, apperr.Unauthorized("This account uses Google sign-in"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(input.Password)); err != nil {
		httpx.Fail(c, apperr.Unauthorized("Invalid email or password"))
		return
	}

	if err := h.subs.EnsureFree(ctx, user.ID); err != nil {
		httpx.Fail(c, err)
		return
	}
	h.respondWithTokens(c, http.StatusOK, &user, "")
}

// POST /auth/refresh
func (h *Handler) Refresh(c *gin.Context) {
	var input struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	claims, err := jwt.ParseToken(input.Token, h.cfg.RefreshSecret, jwt.KindRefresh)
	if err != nil {
		httpx.Fail(c, apperr.Unauthorized("Invalid or expired refresh token"))
		return
	}
	owner, ok, err := h.tokens.RefreshOwner(ctx, claims.ID)
	if err != nil {
		httpx.Fail(c, apperr.Internal("failed to check refresh token", err))
		return
	}
	if !ok || owner != claims.UserID {
		httpx.Fail(c, apperr.Forbidden("Refresh token is invalid"))
		return
	}

	var user users.User
	err = h.db.WithContext(ctx).First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.Fail(c, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		httpx.Fail(c, apperr.Internal("failed to load user", err))
		return
	}

	accessToken, err := jwt.GenerateAccessToken(user.Principal(), h.cfg.AccessSecret, h.cfg.AccessTTL)
	if err != nil {
		httpx.Fail(c, apperr.Internal("Could not create token", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "accessToken": accessToken})
}

// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	var input struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	// Expired or foreign tokens have nothing left to revoke.
	if claims, err := jwt.ParseToken(input.Token, h.cfg.RefreshSecret, jwt.KindRefresh); err == nil {
		if err := h.tokens.RevokeRefresh(c.Request.Context(), claims.ID); err != nil {
			httpx.Fail(c, apperr.Internal("failed to revoke token", err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// POST /auth/otp
func (h *Handler) RequestOTP(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	email := normalizeEmail(input.Email)
	var count int64
	if err := h.db.WithContext(ctx).Model(&users.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		httpx.Fail(c, apperr.Internal("failed to check email", err))
		return
	}
	if count > 0 {
		h.sendOTP(ctx, email)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "If your email exists, an OTP was sent to it."})
}

// POST /auth/otp/verify marks the account verified.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required,email"`
		OTP   string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	email := normalizeEmail(input.Email)
	if !h.consumeOTP(c, email, input.OTP) {
		return
	}
	if err := h.db.WithContext(ctx).Model(&users.User{}).Where("email = ?", email).Update("is_verified", true).Error; err != nil {
		httpx.Fail(c, apperr.Internal("failed to verify user", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "OTP verified successfully"})
}

// POST /auth/password/reset
func (h *Handler) ResetPassword(c *gin.Context) {
	var input struct {
		Email       string `json:"email" binding:"required,email"`
		OTP         string `json:"otp" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}
	if !isPasswordStrong(input.NewPassword) {
		httpx.Fail(c, errWeakPassword)
		return
	}

	email := normalizeEmail(input.Email)
	if !h.consumeOTP(c, email, input.OTP) {
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		httpx.Fail(c, apperr.Internal("Failed to hash password", err))
		return
	}
	err = h.db.WithContext(c.Request.Context()).Model(&users.User{}).
		Where("email = ?", email).
		Updates(map[string]any{"password": string(hashed), "is_verified": true}).Error
	if err != nil {
		httpx.Fail(c, apperr.Internal("failed to reset password", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password reset successful"})
}

// POST /auth/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	var input struct {
		OldPassword string `json:"oldPassword" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}
	if !isPasswordStrong(input.NewPassword) {
		httpx.Fail(c, errWeakPassword)
		return
	}

	ctx := c.Request.Context()
	var user users.User
	if err := h.db.WithContext(ctx).First(&user, p.UserID).Error; err != nil {
		httpx.Fail(c, apperr.Unauthorized("User not found"))
		return
	}
	if user.Password == nil {
		httpx.Fail(c, apperr.Validation("This account uses Google sign-in"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(input.OldPassword)); err != nil {
		httpx.Fail(c, apperr.Unauthorized("Old password is incorrect"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		httpx.Fail(c, apperr.Internal("Failed to hash password", err))
		return
	}
	if err := h.db.WithContext(ctx).Model(&user).Update("password", string(hashed)).Error; err != nil {
		httpx.Fail(c, apperr.Internal("failed to change password", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully"})
}

func (h *Handler) consumeOTP(c *gin.Context, email, code string) bool {
	ok, err := h.tokens.ConsumeOTP(c.Request.Context(), email, strings.TrimSpace(code))
	if err != nil {
		httpx.Fail(c, apperr.Internal("failed to check OTP", err))
		return false
	}
	if !ok {
		httpx.Fail(c, apperr.Validation("Invalid OTP"))
		return false
	}
	return true
}

// sendOTP stores and mails a fresh code. Failures are logged, not returned.
func (h *Handler) sendOTP(ctx context.Context, email string) {
	code, err := generateOTP()
	if err != nil {
		h.log.Error("failed to generate otp", "error", err)
		return
	}
	if err := h.tokens.SaveOTP(ctx, email, code, h.cfg.OTPTTL); err != nil {
		h.log.Error("failed to store otp", "error", err)
		return
	}
	if h.mailer == nil {
		h.log.Warn("smtp not configured, otp not delivered")
		return
	}
	if err := h.mailer.SendOTP(email, code); err != nil {
		h.log.Error("failed to send otp email", "error", err)
	}
}

func (h *Handler) issueTokens(ctx context.Context, u *users.User) (string, string, error) {
	accessToken, err := jwt.GenerateAccessToken(u.Principal(), h.cfg.AccessSecret, h.cfg.AccessTTL)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}
	jti := uuid.New().String()
	refreshToken, err := jwt.GenerateRefreshToken(u.ID, jti, h.cfg.RefreshSecret, h.cfg.RefreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}
	if err := h.tokens.SaveRefresh(ctx, jti, u.ID, h.cfg.RefreshTTL); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (h *Handler) respondWithTokens(c *gin.Context, status int, u *users.User, message string) {
	accessToken, refreshToken, err := h.issueTokens(c.Request.Context(), u)
	if err != nil {
		httpx.Fail(c, apperr.Internal("Could not create token", err))
		return
	}
	body := gin.H{
		"success":      true,
		"user":         toUserDTO(u),
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}
