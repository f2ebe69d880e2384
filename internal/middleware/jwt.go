package middleware

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-seat-booking/internal/handler/response"
)

// RequireAuth validates a Bearer HS256 token and stores its subject under
// "user_id".  Requests without a valid token are rejected with 401.
func RequireAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearer(c)
            if !ok {
                return response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing bearer token")
            }
            sub, err := subject(raw, secret)
            if err != nil {
                return response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token")
            }
            c.Set(userIDKey, sub)
            return next(c)
        }
    }
}

// OptionalAuth behaves like RequireAuth when a token is present and lets
// anonymous requests through.  An invalid token is still rejected so a
// stale session is not silently downgraded to a guest.
func OptionalAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearer(c)
            if !ok {
                return next(c)
            }
            sub, err := subject(raw, secret)
            if err != nil {
                return response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token")
            }
            c.Set(userIDKey, sub)
            return next(c)
        }
    }
}

func bearer(c echo.Context) (string, bool) {
    auth := c.Request().Header.Get(echo.HeaderAuthorization)
    if !strings.HasPrefix(auth, "Bearer ") {
        return "", false
    }
    raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    return raw, raw != ""
}

// subject parses the token and returns its sub claim.  Numeric subjects
// are accepted and rendered in decimal.
func subject(raw, secret string) (string, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
    if err != nil {
        return "", err
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return "", jwt.ErrTokenInvalidClaims
    }
    switch v := claims["sub"].(type) {
    case string:
        if v != "" {
            return v, nil
        }
    case float64:
        return strconv.FormatFloat(v, 'f', -1, 64), nil
    }
    return "", jwt.ErrTokenInvalidClaims
}
