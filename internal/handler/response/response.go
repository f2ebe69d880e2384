// Package response writes the JSON envelope shared by every endpoint.
package response

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

const (
    CodeBadRequest      = "BAD_REQUEST"
    CodeValidation      = "VALIDATION_ERROR"
    CodeUnauthorized    = "UNAUTHORIZED"
    CodeForbidden       = "FORBIDDEN"
    CodeNotFound        = "NOT_FOUND"
    CodeConflict        = "CONFLICT"
    CodePriceMismatch   = "PRICE_MISMATCH"
    CodeShowtimeStarted = "SHOWTIME_STARTED"
    CodeInvalidState    = "INVALID_STATE"
    CodePayment         = "PAYMENT_ERROR"
    CodeRateLimited     = "RATE_LIMITED"
    CodeInternal        = "INTERNAL_ERROR"
)

type Body struct {
    Success bool        `json:"success"`
    Data    interface{} `json:"data,omitempty"`
    Error   *ErrorData  `json:"error,omitempty"`
}

type ErrorData struct {
    Code    string `json:"code"`
    Message string `json:"message"`
}

func OK(c echo.Context, data interface{}) error {
    return c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

func Created(c echo.Context, data interface{}) error {
    return c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

func Error(c echo.Context, status int, code, message string) error {
    return c.JSON(status, Body{Error: &ErrorData{Code: code, Message: message}})
}
