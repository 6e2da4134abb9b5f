package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"ticketsplit/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

// ResetTokenExpiration bounds the lifetime of tokens issued by the
// password-reset flow.
const ResetTokenExpiration = 15 * time.Minute

// UserClaims represents the JWT claims for user authentication
type UserClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWT signs and verifies the bearer tokens used by the API
type JWT struct {
	config *config.JWTConfig
}

// New creates a JWT utility with the given configuration
func New(cfg *config.JWTConfig) *JWT {
	return &JWT{config: cfg}
}

// GenerateToken creates a signed token embedding the user identity, valid for
// the configured expiration window.
func (j *JWT) GenerateToken(userID uint, email string) (string, error) {
	return j.generate(userID, email, j.config.Expiration)
}

// GenerateResetToken creates a short-lived token for the password-reset flow.
func (j *JWT) GenerateResetToken(userID uint, email string) (string, error) {
	return j.generate(userID, email, ResetTokenExpiration)
}

func (j *JWT) generate(userID uint, email string, ttl time.Duration) (string, error) {
	if j.config == nil || j.config.SigningKey == "" {
		return "", errors.New("JWT configuration not provided")
	}

	claims := UserClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.SigningKey))
}

// ValidateToken validates and parses a token, rejecting expired or tampered
// ones.
func (j *JWT) ValidateToken(tokenString string) (*UserClaims, error) {
	if j.config == nil || j.config.SigningKey == "" {
		return nil, errors.New("JWT configuration not provided")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(j.config.SigningKey), nil
		},
	)

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
