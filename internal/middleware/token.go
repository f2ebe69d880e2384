package middleware

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed bearer token and its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// IssueToken signs an HS256 token for userID, in the format RequireAuth
// accepts.  Production tokens come from the identity provider; this is
// used for local development and tests.
func IssueToken(secret, userID string, ttl time.Duration) (AccessToken, error) {
    if secret == "" || userID == "" {
        return AccessToken{}, errors.New("secret and user id are required")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
        Subject:   userID,
        IssuedAt:  jwt.NewNumericDate(now),
        ExpiresAt: jwt.NewNumericDate(exp),
    })
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
