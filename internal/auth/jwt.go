package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	apiTokenType = "outbound_api"
	issuer       = "yunhu-adapter"

	contextKey = "user"
)

// apiClaims is the payload of an outbound API token.
type apiClaims struct {
	Type  string `json:"typ"`
	BotID string `json:"bot_id,omitempty"`
	jwt.RegisteredClaims
}

// Claims identify the caller of the outbound messaging API. An empty BotID
// allows sending as any connected bot.
type Claims struct {
	Subject string
	BotID   string
	TokenID string
}

// Allows reports whether the token may act as botID.
func (c Claims) Allows(botID string) bool {
	return c.BotID == "" || c.BotID == botID
}

// JWTMiddleware verifies HS256 API tokens from the Authorization header or
// the token query parameter. Routes for which skipper returns true pass
// through untouched.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		TokenLookup:   "header:Authorization:Bearer ,query:token",
		ContextKey:    contextKey,
		Skipper:       skipper,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(apiClaims)
		},
	})
}

// GenerateToken signs an API token for subject, optionally limited to one
// bot. It returns the token and its expiry.
func GenerateToken(subject, botID, secret string, expiresIn time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	switch {
	case subject == "":
		return "", time.Time{}, errors.New("subject is required")
	case strings.TrimSpace(secret) == "":
		return "", time.Time{}, errors.New("jwt secret is required")
	case expiresIn <= 0:
		return "", time.Time{}, errors.New("token lifetime must be positive")
	}

	now := time.Now().UTC().Truncate(time.Second)
	expiresAt := now.Add(expiresIn)
	claims := apiClaims{
		Type:  apiTokenType,
		BotID: strings.TrimSpace(botID),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ClaimsFromContext returns the claims JWTMiddleware verified for this request.
func ClaimsFromContext(c echo.Context) (Claims, error) {
	token, ok := c.Get(contextKey).(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return Claims{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	claims, ok := token.Claims.(*apiClaims)
	if !ok {
		return Claims{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	if claims.Type != apiTokenType {
		return Claims{}, echo.NewHTTPError(http.StatusUnauthorized, "not an api token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, echo.NewHTTPError(http.StatusUnauthorized, "subject missing")
	}
	return Claims{Subject: claims.Subject, BotID: claims.BotID, TokenID: claims.ID}, nil
}
