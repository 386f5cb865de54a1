package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/auth"
	"github.com/kbukum/flowkit/auth/authctx"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
)

// CallerKey is the gin context key holding the caller id.
const CallerKey = "caller_id"

// Auth resolves the caller of each request. With a nil validator every
// request runs as auth.Anonymous; otherwise a valid bearer token is
// required and its subject becomes the caller.
func Auth(validator auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := auth.Anonymous
		if validator != nil {
			token, ok := bearerToken(c.GetHeader("Authorization"))
			if !ok {
				abort(c, errors.Unauthorized("Authorization header required"))
				return
			}
			id, err := validator.ValidateToken(token)
			if err != nil {
				appErr, ok := errors.AsAppError(err)
				if !ok {
					appErr = errors.InvalidToken()
				}
				abort(c, appErr)
				return
			}
			caller = id
		}

		ctx := authctx.WithCaller(c.Request.Context(), caller)
		ctx = logger.ContextWithCallerID(ctx, caller)
		c.Request = c.Request.WithContext(ctx)
		c.Set(CallerKey, caller)
		c.Next()
	}
}

// Caller returns the caller resolved by Auth.
func Caller(c *gin.Context) string {
	if id, ok := authctx.Caller(c.Request.Context()); ok {
		return id
	}
	return auth.Anonymous
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func abort(c *gin.Context, err *errors.AppError) {
	if err.HTTPStatus == http.StatusTooManyRequests {
		c.Header("Retry-After", c.GetString("retry_after"))
	}
	c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
}
