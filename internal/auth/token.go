package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ms-reservation/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// SessionHeader carries the opaque session id issued at login.
const SessionHeader = "Session-ID"

// ExtractTokenFromRequest returns the credential of a request: the Session-ID
// header when present, otherwise the bearer token of the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	if sessionID := strings.TrimSpace(r.Header.Get(SessionHeader)); sessionID != "" {
		return sessionID, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}
	return parts[1], nil
}

// Claims are the claims of tokens signed with the shared secret.
type Claims struct {
	IsAdmin bool `json:"is_admin"`
	jwt.RegisteredClaims
}

// JWTResolver accepts HS256 tokens whose subject is the numeric user id.
type JWTResolver struct {
	Secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{Secret: []byte(secret)}
}

func (j *JWTResolver) Resolve(_ context.Context, tokenString string) (models.Principal, error) {
	if tokenString == "" || len(j.Secret) == 0 {
		return models.Principal{}, models.ErrSessionInvalid
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return j.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", models.ErrSessionInvalid, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return models.Principal{}, fmt.Errorf("%w: subject is not a user id", models.ErrSessionInvalid)
	}
	return models.Principal{UserID: userID, IsAdmin: claims.IsAdmin}, nil
}

// Issue signs a token for userID valid for ttl.
func (j *JWTResolver) Issue(userID int64, isAdmin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
}
