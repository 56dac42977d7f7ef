package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload inside every token the broker accepts. The
// surrounding system issues these; the broker only verifies them and pulls
// out the user identity. UserID is an opaque string: channel names embed it
// verbatim ("user.<id>"), so no particular id format is assumed.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed HS256 token for a user. The broker itself
// never calls this in the serving path; it exists for the issuing side of
// the system and for tests.
func GenerateToken(userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "streamgate",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a token string and extracts the claims. It checks
// the signature, the expiry, and that the signing method is HMAC (rejecting
// "none"/RSA tokens, the classic algorithm-confusion attack).
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token missing user_id")
	}

	return claims, nil
}

// Verifier is the token-verification collaborator the hub consumes: an
// opaque token in, a user identity or an error out. Verification failure of
// any kind fails closed.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

func (v *Verifier) Verify(token string) (string, error) {
	claims, err := ParseToken(token, v.secret)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
