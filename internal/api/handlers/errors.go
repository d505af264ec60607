package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sma-backtest/internal/api/models"
	"sma-backtest/internal/backtest"
	"sma-backtest/internal/data"
	"sma-backtest/internal/model"
	"sma-backtest/internal/store/sqlite"
)

// errorResponse maps an error from any layer to an HTTP status and error envelope.
func errorResponse(err error) (int, models.ErrorDetail) {
	if se, ok := data.IsSourceError(err); ok {
		status := http.StatusBadGateway
		switch se.Code {
		case data.CodeRateLimited:
			status = http.StatusTooManyRequests
		case data.CodeInvalidData, data.CodeDecodeError:
			if se.Source != "coingecko" {
				status = http.StatusUnprocessableEntity
			}
		}
		details := map[string]interface{}{
			"source":      se.Source,
			"source_code": se.Code,
		}
		if se.StatusCode != 0 {
			details["status_code"] = se.StatusCode
		}
		if se.RetryAfter != "" {
			details["retry_after"] = se.RetryAfter
		}
		return status, models.ErrorDetail{Code: "DATA_SOURCE_ERROR", Message: se.Error(), Details: details}
	}

	switch {
	case errors.Is(err, model.ErrInvalidParams):
		return http.StatusBadRequest, models.ErrorDetail{Code: "INVALID_PARAMS", Message: err.Error()}
	case errors.Is(err, backtest.ErrInsufficientData):
		return http.StatusUnprocessableEntity, models.ErrorDetail{Code: "INSUFFICIENT_DATA", Message: err.Error()}
	case errors.Is(err, model.ErrInvalidBars):
		return http.StatusUnprocessableEntity, models.ErrorDetail{Code: "INVALID_DATA", Message: err.Error()}
	case errors.Is(err, backtest.ErrInvariantViolation):
		return http.StatusInternalServerError, models.ErrorDetail{Code: "INVARIANT_VIOLATION", Message: err.Error()}
	case errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound, models.ErrorDetail{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, models.ErrorDetail{Code: "TIMEOUT", Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return 499, models.ErrorDetail{Code: "CANCELLED", Message: err.Error()}
	default:
		return http.StatusInternalServerError, models.ErrorDetail{Code: "INTERNAL_ERROR", Message: err.Error()}
	}
}

func respondError(c *gin.Context, err error) {
	status, detail := errorResponse(err)
	c.JSON(status, models.ErrorResponse{Error: detail})
}

func badRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorDetail{Code: code, Message: msg},
	})
}

// runStatus is the outcome label recorded for a run.
func runStatus(err error) string {
	if err == nil {
		return "ok"
	}
	_, detail := errorResponse(err)
	return detail.Code
}
