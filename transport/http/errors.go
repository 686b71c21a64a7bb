package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/invoicegate/core"
)

// statusFor maps a service error to an HTTP status and a message safe to show
// to an unauthenticated caller
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrInvalidAddress),
		errors.Is(err, core.ErrConsentRequired):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, core.ErrInvalidChallenge):
		return http.StatusUnauthorized, core.ErrInvalidChallenge.Error()
	case errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized, core.ErrInvalidSignature.Error()
	case errors.Is(err, core.ErrTokenExpired):
		return http.StatusUnauthorized, core.ErrTokenExpired.Error()
	case errors.Is(err, core.ErrTokenInvalidated):
		return http.StatusUnauthorized, core.ErrTokenInvalidated.Error()
	case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrNotAuthenticated):
		return http.StatusUnauthorized, core.ErrInvalidToken.Error()
	case errors.Is(err, core.ErrWalletConflict):
		return http.StatusConflict, core.ErrWalletConflict.Error()
	case errors.Is(err, core.ErrWalletNotFound):
		return http.StatusNotFound, core.ErrWalletNotFound.Error()
	case errors.Is(err, core.ErrChallengeUnavailable):
		return http.StatusInternalServerError, core.ErrChallengeUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func rootMessage(err error) string {
	for _, sentinel := range []error{core.ErrInvalidAddress, core.ErrConsentRequired, core.ErrInvalidInput} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func failure(message string) gin.H {
	return gin.H{"success": false, "message": message}
}

// respondError writes the uniform failure body for err
func respondError(c *gin.Context, err error) {
	status, message := statusFor(err)
	c.AbortWithStatusJSON(status, failure(message))
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, failure("invalid request"))
}
