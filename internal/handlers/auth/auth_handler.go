// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"net/http"

	"ledroitcheck-service/internal/middleware"
	"ledroitcheck-service/internal/pkg/response"
	authUsecase "ledroitcheck-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Authenticator interface {
	Login(ctx context.Context, usuario, password string) (*authUsecase.LoginResult, error)
}

type AuthHandler struct {
	authService Authenticator
	cookie      middleware.CookieConfig
	logger      *zap.Logger
}

func NewAuthHandler(authService Authenticator, cookie middleware.CookieConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
		logger:      logger,
	}
}

// LoginRequest carries master credentials
type LoginRequest struct {
	Usuario  string `json:"usuario" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ========== Login ==========

// Login authenticates against the master system and opens a session
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Usuario, req.Password)
	if err != nil {
		h.logger.Warn("login failed",
			zap.String("usuario", req.Usuario),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		response.Fail(c, "login failed", err)
		return
	}

	if result.Token != "" {
		h.cookie.Set(c, result.Token)
	}
	response.Success(c, http.StatusOK, "login successful", result)
}
