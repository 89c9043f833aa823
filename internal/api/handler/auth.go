package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "supportbot"
	tokenTTL    = 72 * time.Hour
)

// Claims identify the user a WebSocket feed belongs to.
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Authenticator issues and checks HS256 tokens for the event feed.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: tokenTTL, now: time.Now}
}

// Sign returns a token for userID and its expiry.
func (a *Authenticator) Sign(userID int64) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	return signed, exp, err
}

// Parse validates a token and returns the user it was issued for.
func (a *Authenticator) Parse(tokenString string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == 0 {
		return 0, errors.New("invalid token")
	}
	return claims.UserID, nil
}

// bearerToken reads the token from the Authorization header or, since
// browsers cannot set headers on WebSocket requests, the token query value.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

type tokenRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// IssueToken hands the chat transport a feed token for one of its users.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if !bind(c, &req) {
		return
	}
	token, exp, err := h.Auth.Sign(req.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": exp.Unix()})
}
