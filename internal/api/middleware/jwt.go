package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "kc-steward.io/steward/internal/pkg/errors"
)

var (
	// ErrJWTSigningKeyMissing is returned when no HMAC key is configured.
	ErrJWTSigningKeyMissing = errors.New("jwt signing key is not configured")
	// ErrTokenRevoked is returned for a token whose ID was revoked.
	ErrTokenRevoked = errors.New("token has been revoked")
)

// JWTClaims defines the operator token claims.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// RevocationChecker reports whether a token ID was revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWTConfig holds JWT signing and verification configuration.
// VerificationKeys are accepted in addition to SigningKey during key rotation.
type JWTConfig struct {
	SigningKey        []byte
	VerificationKeys  [][]byte
	Issuer            string
	ExpiresIn         time.Duration
	RevocationChecker RevocationChecker
}

// GenerateToken creates a signed HS256 token for the given operator.
func GenerateToken(cfg JWTConfig, userID, username string, roles, permissions []string) (string, time.Time, error) {
	if len(cfg.SigningKey) == 0 {
		return "", time.Time{}, ErrJWTSigningKeyMissing
	}
	now := time.Now()
	expiresAt := now.Add(cfg.ExpiresIn)

	claims := JWTClaims{
		UserID:      userID,
		Username:    username,
		Roles:       roles,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken parses and verifies a token. Tokens without nbf are accepted.
func (cfg JWTConfig) ValidateToken(ctx context.Context, tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, cfg.keyFunc, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	if cfg.RevocationChecker != nil && claims.ID != "" {
		revoked, err := cfg.RevocationChecker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

func (cfg JWTConfig) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	if len(cfg.SigningKey) == 0 {
		return nil, ErrJWTSigningKeyMissing
	}
	if len(cfg.VerificationKeys) == 0 {
		return cfg.SigningKey, nil
	}
	set := jwt.VerificationKeySet{Keys: []jwt.VerificationKey{cfg.SigningKey}}
	for _, k := range cfg.VerificationKeys {
		if len(k) > 0 {
			set.Keys = append(set.Keys, k)
		}
	}
	return set, nil
}

// JWTAuth returns a Gin middleware that validates Bearer tokens and populates context.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, apperrors.CodeAuthFailed, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, apperrors.CodeAuthFailed, "invalid authorization header format")
			return
		}

		claims, err := cfg.ValidateToken(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				abortUnauthorized(c, apperrors.CodeTokenExpired, "token expired")
			case errors.Is(err, ErrTokenRevoked):
				abortUnauthorized(c, apperrors.CodeTokenInvalid, "token revoked")
			default:
				abortUnauthorized(c, apperrors.CodeTokenInvalid, "invalid token")
			}
			return
		}

		c.Set(string(ctxKeyUserID), claims.UserID)
		c.Set(string(ctxKeyUsername), claims.Username)
		c.Set(string(ctxKeyPermissions), claims.Permissions)
		c.Request = c.Request.WithContext(
			SetUserContext(c.Request.Context(), claims.UserID, claims.Username, claims.Permissions),
		)

		c.Next()
	}
}

// AnonymousAdmin stands in for JWTAuth when authentication is disabled.
func AnonymousAdmin() gin.HandlerFunc {
	perms := []string{PermAdmin}
	return func(c *gin.Context) {
		c.Set(string(ctxKeyUserID), "")
		c.Set(string(ctxKeyUsername), "anonymous")
		c.Set(string(ctxKeyPermissions), perms)
		c.Request = c.Request.WithContext(SetUserContext(c.Request.Context(), "", anonymousActor, perms))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Code:      code,
		Message:   msg,
		RequestID: GetRequestID(c.Request.Context()),
	})
}
