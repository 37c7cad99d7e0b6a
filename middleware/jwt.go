package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer marks tokens minted by this service, so a JWT signed with a
// shared secret by some other service cannot authenticate here.
const tokenIssuer = "sagabrawl"

// Claims is the signed session payload. The short "aid" key keeps tokens
// compact since one rides along on every combat command.
type Claims struct {
	AccountID int64 `json:"aid"`
	jwt.RegisteredClaims
}

// GenerateToken mints a signed session token for an account.
func GenerateToken(accountID int64, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(accountID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

var errInvalidToken = errors.New("invalid token")

// ParseToken validates a session token's signature, lifetime and issuer.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AccountID == 0 {
		return nil, errInvalidToken
	}
	return claims, nil
}

// SessionKey is the cache key a live session for the token lives under.
// Login writes it, logout deletes it, and every authenticated request and
// stream checks it, so logout revokes a JWT ahead of its expiry.
func SessionKey(token string) string {
	return "session:" + token
}
