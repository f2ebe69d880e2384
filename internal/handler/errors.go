package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-booking/internal/booking"
    "github.com/iliyamo/cinema-seat-booking/internal/checkout"
    "github.com/iliyamo/cinema-seat-booking/internal/handler/response"
    "github.com/iliyamo/cinema-seat-booking/internal/hold"
    "github.com/iliyamo/cinema-seat-booking/internal/payment"
    "github.com/iliyamo/cinema-seat-booking/internal/pricing"
    "github.com/iliyamo/cinema-seat-booking/internal/repository"
    "github.com/iliyamo/cinema-seat-booking/internal/seatmap"
)

type errorMapping struct {
    target error
    status int
    code   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
    {seatmap.ErrInvalidIdentifier, http.StatusBadRequest, response.CodeBadRequest},
    {seatmap.ErrInvalidPosition, http.StatusBadRequest, response.CodeBadRequest},
    {hold.ErrInvalidShowtime, http.StatusBadRequest, response.CodeBadRequest},
    {hold.ErrInvalidSeat, http.StatusBadRequest, response.CodeBadRequest},
    {booking.ErrInvalidRequest, http.StatusBadRequest, response.CodeBadRequest},
    {checkout.ErrEmptySelection, http.StatusBadRequest, response.CodeBadRequest},
    {checkout.ErrClientSecretMismatch, http.StatusBadRequest, response.CodeBadRequest},
    {checkout.ErrScreenMismatch, http.StatusBadRequest, response.CodeBadRequest},
    {payment.ErrMalformedSecret, http.StatusBadRequest, response.CodeBadRequest},
    {payment.ErrInvalidAmount, http.StatusBadRequest, response.CodeBadRequest},

    {pricing.ErrPriceMismatch, http.StatusUnprocessableEntity, response.CodePriceMismatch},
    {pricing.ErrUnknownDiscount, http.StatusUnprocessableEntity, response.CodeValidation},
    {pricing.ErrDiscountNotAllowed, http.StatusUnprocessableEntity, response.CodeValidation},
    {pricing.ErrUnknownSeat, http.StatusUnprocessableEntity, response.CodeValidation},
    {booking.ErrSeatsNotFound, http.StatusUnprocessableEntity, response.CodeValidation},
    {booking.ErrShowtimeStarted, http.StatusUnprocessableEntity, response.CodeShowtimeStarted},

    {booking.ErrUnauthenticated, http.StatusUnauthorized, response.CodeUnauthorized},
    {checkout.ErrAuthenticationRequired, http.StatusUnauthorized, response.CodeUnauthorized},
    {checkout.ErrForbidden, http.StatusForbidden, response.CodeForbidden},

    {repository.ErrShowtimeNotFound, http.StatusNotFound, response.CodeNotFound},
    {repository.ErrScreenNotFound, http.StatusNotFound, response.CodeNotFound},
    {checkout.ErrSessionNotFound, http.StatusNotFound, response.CodeNotFound},
    {payment.ErrIntentNotFound, http.StatusNotFound, response.CodeNotFound},

    {booking.ErrSeatsAlreadyBooked, http.StatusConflict, response.CodeConflict},
    {booking.ErrPaymentAlreadyUsed, http.StatusConflict, response.CodeConflict},
    {booking.ErrPaymentMismatch, http.StatusConflict, response.CodeConflict},
    {repository.ErrConflict, http.StatusConflict, response.CodeConflict},
    {checkout.ErrInvalidTransition, http.StatusConflict, response.CodeInvalidState},

    {booking.ErrPaymentIncomplete, http.StatusPaymentRequired, response.CodePayment},
}

// fail writes err as an envelope.  Unknown errors are logged and hidden
// behind a generic message.
func fail(c echo.Context, log *zap.Logger, err error) error {
    var ve validationError
    if errors.As(err, &ve) {
        return response.Error(c, http.StatusUnprocessableEntity, response.CodeValidation, ve.Error())
    }
    var he *echo.HTTPError
    if errors.As(err, &he) {
        msg := http.StatusText(he.Code)
        if s, ok := he.Message.(string); ok {
            msg = s
        }
        return response.Error(c, he.Code, response.CodeBadRequest, msg)
    }
    for _, m := range errorMappings {
        if errors.Is(err, m.target) {
            return response.Error(c, m.status, m.code, err.Error())
        }
    }
    log.Error("unhandled error",
        zap.String("path", c.Path()),
        zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
        zap.Error(err),
    )
    return response.Error(c, http.StatusInternalServerError, response.CodeInternal, "internal server error")
}

// gatewayFailure reports a payment provider error.
func gatewayFailure(c echo.Context, log *zap.Logger, err error) error {
    for _, target := range []error{payment.ErrInvalidAmount, payment.ErrIntentNotFound, payment.ErrMalformedSecret} {
        if errors.Is(err, target) {
            return fail(c, log, err)
        }
    }
    log.Warn("payment provider error", zap.Error(err))
    return response.Error(c, http.StatusBadGateway, response.CodePayment, "payment provider unavailable")
}

// bind decodes and validates the request body.
func bind(c echo.Context, dst interface{}) error {
    if err := c.Bind(dst); err != nil {
        return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
    }
    return c.Validate(dst)
}

func idParam(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
    }
    return id, nil
}
