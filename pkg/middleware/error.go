package middleware

import (
	"net/http"

	"sendpool/pkg/errutil"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error a handler pushed with c.Error. BaseErrors are
// returned as-is; anything else is logged, reported to Sentry when a client
// is configured, and surfaced as a generic internal error.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		if v, ok := errutil.As(last.Err); ok && v.Code != errutil.StatusInternal && v.Code != errutil.StatusUnknown {
			c.JSON(v.Code.HTTPStatus(), v.JSON())
			return
		}

		zap.L().Error("unhandled request error",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Error(last.Err),
		)

		if hub := sentry.CurrentHub(); hub.Client() != nil {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("path", c.FullPath())
				scope.SetTag("request_id", c.GetString(RequestIDKey))
				hub.CaptureException(last.Err)
			})
		}

		c.JSON(http.StatusInternalServerError, errutil.BaseError{
			Code:    errutil.StatusInternal,
			Message: "internal server error",
		}.JSON())
	}
}
