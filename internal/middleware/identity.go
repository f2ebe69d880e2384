package middleware

import "github.com/labstack/echo/v4"

const userIDKey = "user_id"

// UserID returns the authenticated subject, or "" for anonymous requests.
func UserID(c echo.Context) string {
    if s, ok := c.Get(userIDKey).(string); ok {
        return s
    }
    return ""
}

// rateSubject identifies the caller for rate limiting.
func rateSubject(c echo.Context) string {
    if uid := UserID(c); uid != "" {
        return uid
    }
    return "anon"
}
