package handler

import (
	"net/http"

	"github.com/straye-as/purchasing-api/internal/auth"
	"github.com/straye-as/purchasing-api/internal/domain"
	"go.uber.org/zap"
)

type AuthHandler struct {
	logger *zap.Logger
}

func NewAuthHandler(logger *zap.Logger) *AuthHandler {
	return &AuthHandler{logger: logger}
}

// Me godoc
// @Summary Get current authenticated user
// @Description Returns the current user with roles and the capabilities they grant
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.AuthUserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	actor := userCtx.Actor()
	respondJSON(w, http.StatusOK, domain.AuthUserDTO{
		ID:           actor.ID,
		Name:         actor.Name,
		Email:        userCtx.Email,
		Roles:        userCtx.Roles,
		Capabilities: actor.Capabilities(),
	})
}
