package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/app/http/httpx"
	"voiceclone-backend/internal/domain/access"
	"voiceclone-backend/internal/domain/users"
)

const (
	googleIssuer    = "https://accounts.google.com"
	stateCookieName = "oauth_state"
)

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
}

type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*GoogleIdentity, error)
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v *oidcVerifier) Verify(ctx context.Context, rawIDToken string) (*GoogleIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	var id GoogleIdentity
	if err := idToken.Claims(&id); err != nil {
		return nil, fmt.Errorf("decode id_token claims: %w", err)
	}
	return &id, nil
}

type Google struct {
	oauth            *oauth2.Config
	verifier         IdentityVerifier
	frontendRedirect string
	secureCookie     bool
}

// NewGoogle discovers Google's OIDC configuration and returns a sign-in
// provider for the given client.
func NewGoogle(ctx context.Context, clientID, clientSecret, redirectURL, frontendRedirect string, secureCookie bool) (*Google, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}
	oauth := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		Endpoint:     google.Endpoint,
	}
	verifier := &oidcVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}
	return NewGoogleWith(oauth, verifier, frontendRedirect, secureCookie), nil
}

func NewGoogleWith(oauth *oauth2.Config, verifier IdentityVerifier, frontendRedirect string, secureCookie bool) *Google {
	return &Google{oauth: oauth, verifier: verifier, frontendRedirect: frontendRedirect, secureCookie: secureCookie}
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GET /auth/google
func (h *Handler) GoogleStart(c *gin.Context) {
	if h.google == nil {
		httpx.Fail(c, apperr.NotFound("Google sign-in is not configured"))
		return
	}

	state, err := randomState()
	if err != nil {
		httpx.Fail(c, apperr.Internal("failed to generate state", err))
		return
	}
	c.SetCookie(stateCookieName, state, 300, "/", "", h.google.secureCookie, true)
	c.Redirect(http.StatusFound, h.google.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GET /auth/google/callback
func (h *Handler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		httpx.Fail(c, apperr.NotFound("Google sign-in is not configured"))
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		httpx.Fail(c, apperr.Validation("missing code/state"))
		return
	}
	cookieState, err := c.Cookie(stateCookieName)
	if err != nil || cookieState != state {
		httpx.Fail(c, apperr.Validation("invalid oauth state"))
		return
	}

	ctx := c.Request.Context()
	tok, err := h.google.oauth.Exchange(ctx, code)
	if err != nil {
		httpx.Fail(c, apperr.Unauthorized("failed to exchange code"))
		return
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		httpx.Fail(c, apperr.Unauthorized("missing id_token"))
		return
	}
	id, err := h.google.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		h.log.Warn("google id_token rejected", "error", err)
		httpx.Fail(c, apperr.Unauthorized("invalid id_token"))
		return
	}
	if id.Sub == "" || id.Email == "" {
		httpx.Fail(c, apperr.Unauthorized("google account has no email"))
		return
	}

	user, err := h.findOrCreateGoogleUser(ctx, id)
	if err != nil {
		httpx.Fail(c, apperr.Internal("failed to create user", err))
		return
	}
	if err := h.subs.EnsureFree(ctx, user.ID); err != nil {
		httpx.Fail(c, err)
		return
	}

	if h.google.frontendRedirect == "" {
		h.respondWithTokens(c, http.StatusOK, user, "")
		return
	}
	accessToken, refreshToken, err := h.issueTokens(ctx, user)
	if err != nil {
		httpx.Fail(c, apperr.Internal("Could not create token", err))
		return
	}
	q := url.Values{"token": {accessToken}, "refreshToken": {refreshToken}}
	c.Redirect(http.StatusFound, h.google.frontendRedirect+"?"+q.Encode())
}

// findOrCreateGoogleUser matches by Google subject, then by email (linking
// the subject), and otherwise creates a verified Google account.
func (h *Handler) findOrCreateGoogleUser(ctx context.Context, id *GoogleIdentity) (*users.User, error) {
	db := h.db.WithContext(ctx)
	var user users.User

	err := db.Where("google_sub = ?", id.Sub).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	email := normalizeEmail(id.Email)
	err = db.Where("email = ?", email).First(&user).Error
	if err == nil {
		if user.GoogleSub == nil {
			sub := id.Sub
			user.GoogleSub = &sub
			user.IsVerified = true
			if err := db.Model(&user).Updates(map[string]any{"google_sub": sub, "is_verified": true}).Error; err != nil {
				return nil, err
			}
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sub := id.Sub
	user = users.User{
		Name:         strings.TrimSpace(firstNonEmpty(id.GivenName, id.Name)),
		Email:        email,
		AuthProvider: users.ProviderGoogle,
		GoogleSub:    &sub,
		Role:         access.RoleUser,
		IsVerified:   true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	h.log.Info("user registered", "user_id", user.ID, "provider", users.ProviderGoogle)
	return &user, nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
