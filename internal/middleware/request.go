package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

const (
    RequestIDHeader = echo.HeaderXRequestID
    requestIDKey    = "request_id"
)

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id := c.Request().Header.Get(RequestIDHeader)
            if id == "" {
                id = uuid.NewString()
            }
            c.Set(requestIDKey, id)
            c.Response().Header().Set(RequestIDHeader, id)
            return next(c)
        }
    }
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(c echo.Context) string {
    if s, ok := c.Get(requestIDKey).(string); ok {
        return s
    }
    return ""
}

// Logger logs one line per request, at a level derived from the status.
func Logger(log *zap.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }

            req := c.Request()
            status := c.Response().Status
            fields := []zap.Field{
                zap.String("request_id", GetRequestID(c)),
                zap.Int("status", status),
                zap.String("method", req.Method),
                zap.String("path", req.URL.Path),
                zap.String("route", c.Path()),
                zap.String("ip", c.RealIP()),
                zap.Duration("latency", time.Since(start)),
                zap.Int64("bytes_out", c.Response().Size),
            }
            if uid := UserID(c); uid != "" {
                fields = append(fields, zap.String("user_id", uid))
            }
            if err != nil {
                fields = append(fields, zap.Error(err))
            }
            switch {
            case status >= 500:
                log.Error("request failed", fields...)
            case status >= 400:
                log.Warn("request rejected", fields...)
            default:
                log.Info("request completed", fields...)
            }
            return nil
        }
    }
}
