package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/auth"
	"github.com/kbukum/flowkit/credentials"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/server"
	"github.com/kbukum/flowkit/server/middleware"
	"github.com/kbukum/flowkit/validation"
)

type credentialRequest struct {
	Key string `json:"key" validate:"required,max=512"`
}

// PutCredential stores the caller's key for a provider.
func (h *Handler) PutCredential(c *gin.Context) {
	owner, provider, ok := h.credentialTarget(c)
	if !ok {
		return
	}
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.Validation("invalid request body").WithCause(err))
		return
	}
	if err := validation.Validate(&req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.Credentials.Put(c.Request.Context(), owner, provider, req.Key); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.WithContext(c.Request.Context()).Info("Credential stored", logger.Fields(
		"provider", string(provider),
		"key", logger.MaskSecret(req.Key),
	))
	server.RespondNoContent(c)
}

// DeleteCredential removes the caller's key for a provider.
func (h *Handler) DeleteCredential(c *gin.Context) {
	owner, provider, ok := h.credentialTarget(c)
	if !ok {
		return
	}
	if err := h.Credentials.Delete(c.Request.Context(), owner, provider); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

// credentialTarget resolves the owner and provider, answering the request
// itself when either is unusable. Anonymous callers have no key slot.
func (h *Handler) credentialTarget(c *gin.Context) (string, credentials.Provider, bool) {
	owner := middleware.Caller(c)
	if owner == auth.Anonymous {
		server.RespondWithError(c, errors.Unauthorized("sign in to manage credentials"))
		return "", "", false
	}
	provider, err := credentials.ParseProvider(c.Param("provider"))
	if err != nil {
		server.RespondWithError(c, err)
		return "", "", false
	}
	return owner, provider, true
}
