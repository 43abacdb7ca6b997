package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/inkstone/newsroom/internal/core/domain/apperror"
	"github.com/inkstone/newsroom/internal/infrastructure/httpserver/helpers"
)

// Meta rides on every envelope for log correlation.
type Meta struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

func NewPagination(page, limit, total int) *Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

type successEnvelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Meta       Meta        `json:"meta"`
}

type errorBody struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
	Meta    Meta      `json:"meta"`
}

func meta(c echo.Context) Meta {
	m := Meta{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if rc, ok := helpers.GetRequestContext(c); ok {
		m.RequestID = rc.RequestID
	}
	return m
}

// respond writes the success envelope.
func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, successEnvelope{Success: true, Data: data, Meta: meta(c)})
}

// respondPaginated writes the success envelope with a pagination block.
func respondPaginated(c echo.Context, status int, data any, p *Pagination) error {
	return c.JSON(status, successEnvelope{Success: true, Data: data, Pagination: p, Meta: meta(c)})
}

// NewErrorHandler builds the single translation boundary between typed errors
// and HTTP responses. Handlers and middleware return errors; nothing below
// this point formats one.
func NewErrorHandler(logger *logrus.Logger, environment string) echo.HTTPErrorHandler {
	production := environment == "production"

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := errorBody{Code: string(apperror.CodeInternal), Message: "internal server error"}
		status := http.StatusInternalServerError

		var appErr *apperror.Error
		var httpErr *echo.HTTPError
		var valErrs validator.ValidationErrors
		switch {
		case errors.As(err, &appErr):
			status = appErr.Code.HTTPStatus()
			body.Code = string(appErr.Code)
			body.Message = appErr.Message
			body.Details = appErr.Details
		case errors.As(err, &valErrs):
			status = http.StatusBadRequest
			body.Code = string(apperror.CodeValidation)
			body.Message = "request validation failed"
			details := map[string]any{}
			for _, fe := range valErrs {
				details[fe.Field()] = fe.Tag()
			}
			body.Details = details
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body.Code = string(codeForStatus(httpErr.Code))
			if msg, ok := httpErr.Message.(string); ok {
				body.Message = msg
			} else {
				body.Message = http.StatusText(httpErr.Code)
			}
		default:
			if !production {
				body.Message = err.Error()
			}
		}

		if status >= http.StatusInternalServerError && logger != nil {
			fields := logrus.Fields{"method": c.Request().Method, "path": c.Request().URL.Path}
			if rc, ok := helpers.GetRequestContext(c); ok {
				fields["request_id"] = rc.RequestID
			}
			logger.WithFields(fields).WithError(err).Error("request failed")
		}

		// Production clients get no internals for 5xx responses.
		if production && status >= http.StatusInternalServerError {
			body.Message = "internal server error"
			body.Details = nil
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, errorEnvelope{Success: false, Error: body, Meta: meta(c)})
	}
}

func codeForStatus(status int) apperror.Code {
	switch status {
	case http.StatusBadRequest:
		return apperror.CodeBadRequest
	case http.StatusUnauthorized:
		return apperror.CodeUnauthorized
	case http.StatusForbidden:
		return apperror.CodeForbidden
	case http.StatusNotFound:
		return apperror.CodeNotFound
	case http.StatusMethodNotAllowed:
		return apperror.CodeMethodNotAllowed
	case http.StatusConflict:
		return apperror.CodeConflict
	case http.StatusTooManyRequests:
		return apperror.CodeRateLimited
	default:
		return apperror.CodeInternal
	}
}
