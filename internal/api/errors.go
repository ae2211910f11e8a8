package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/stellarlinkco/edusphere/internal/school"
)

var (
	errNoInsight = echo.NewHTTPError(http.StatusNotFound, "no insight generated yet")
	errNoFile    = echo.NewHTTPError(http.StatusBadRequest, "missing workbook upload in field \"file\"")
	errBadLimit  = echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
)

// newHTTPErrorHandler maps validation failures to 400 with a field map,
// passes echo.HTTPError through and logs everything else as a 500.
func newHTTPErrorHandler(logger *zap.Logger, v *Validator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message any

		var httpErr *echo.HTTPError
		var valErrs validator.ValidationErrors
		switch {
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &valErrs):
			code = http.StatusBadRequest
			message = v.Fields(valErrs)
		case errors.Is(err, school.ErrMissingField):
			code = http.StatusBadRequest
			message = err.Error()
		default:
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			logger.Error("request failed",
				zap.String("method", ctx.Request().Method),
				zap.String("path", ctx.Path()),
				zap.Error(err))
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			logger.Error("write error response", zap.Error(err))
		}
	}
}
