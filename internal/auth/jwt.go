// Package auth - jwt.go handles session token creation, signing, and
// verification using a shared secret, including lazy secret initialization and
// claims parsing.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "community-hub"

var (
	// jwtSecret holds the validated JWT secret
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// Claims represents the JWT claims structure
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Scope  Scope  `json:"scope"`
	// CommunityID binds an app token to the community it was issued for
	CommunityID string `json:"community_id,omitempty"`
	jwt.RegisteredClaims
}

// isDevMode checks if we're in development mode
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	ginMode := os.Getenv("GIN_MODE")

	return devMode == "true" || devMode == "1" || ginMode == "debug"
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// ValidateJWTSecret checks that the JWT secret is properly configured.
// Outside dev mode it fails if CMH_JWT_SECRET is not set; in dev mode a
// random secret is generated. Call this at application startup.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("CMH_JWT_SECRET")

		if secret == "" {
			if isDevMode() {
				jwtSecret = generateRandomSecret()
				slog.Warn("CMH_JWT_SECRET not set, using an auto-generated secret; sessions will not survive a restart")
			} else {
				jwtSecretErr = errors.New("CMH_JWT_SECRET environment variable is required. " +
					"Generate a secure secret with: openssl rand -hex 32")
			}
			return
		}

		if len(secret) < 32 {
			slog.Warn("CMH_JWT_SECRET is shorter than the recommended 32 characters")
		}

		jwtSecret = secret
	})

	return jwtSecretErr
}

// GetJWTSecret retrieves the validated JWT secret.
// Panics if the secret cannot be initialized.
func GetJWTSecret() string {
	if jwtSecret == "" {
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

func signClaims(claims *Claims, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = time.Hour
	}
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
		Subject:   claims.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(GetJWTSecret()))
}

// GenerateAppToken issues a token usable on /app routes of one community only
func GenerateAppToken(userID, email, communityID string, expiresIn time.Duration) (string, error) {
	if communityID == "" {
		return "", errors.New("app token requires a community")
	}
	return signClaims(&Claims{UserID: userID, Email: email, Scope: ScopeApp, CommunityID: communityID}, expiresIn)
}

// GenerateConsoleToken issues a token for the console surface
func GenerateConsoleToken(userID, email string, expiresIn time.Duration) (string, error) {
	return signClaims(&Claims{UserID: userID, Email: email, Scope: ScopeConsole}, expiresIn)
}

// ValidateJWT parses and validates a JWT token
func ValidateJWT(tokenString string) (*Claims, error) {
	secret := GetJWTSecret()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	if _, err := ParseScope(string(claims.Scope)); err != nil {
		return nil, err
	}
	if claims.Scope == ScopeApp && claims.CommunityID == "" {
		return nil, errors.New("app token is not bound to a community")
	}

	return claims, nil
}
