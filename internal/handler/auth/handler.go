package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mondo989/ReallyGoodJob/internal/handler"
	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/repository"
	"github.com/mondo989/ReallyGoodJob/internal/service/credential"
	"github.com/mondo989/ReallyGoodJob/pkg/auth"
	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
)

const stateCookie = "oauth_state"

// Handler runs the Google OAuth login flow: consent redirect, code exchange,
// user upsert, encrypted token storage, session JWT.
type Handler struct {
	users       repository.UserRepository
	credentials *credential.Service
	jwt         auth.JWTService
	logger      *logger.Logger
}

func NewHandler(users repository.UserRepository, credentials *credential.Service, jwt auth.JWTService, log *logger.Logger) *Handler {
	return &Handler{users: users, credentials: credentials, jwt: jwt, logger: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	authGroup := r.Group("/auth")
	{
		authGroup.GET("/google", h.Login)
		authGroup.GET("/google/callback", h.Callback)
	}
}

func (h *Handler) Login(c *gin.Context) {
	state := uuid.New().String()
	c.SetCookie(stateCookie, state, 600, "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.credentials.AuthCodeURL(state))
}

func (h *Handler) Callback(c *gin.Context) {
	state, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid oauth state"))
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("missing authorization code"))
		return
	}

	ctx := c.Request.Context()
	tokens, err := h.credentials.Exchange(ctx, code)
	if err != nil {
		h.logger.Error(err, "oauth exchange failed")
		c.JSON(http.StatusBadGateway, handler.NewErrorResponse("authorization failed"))
		return
	}

	info, err := h.credentials.FetchUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		h.logger.Error(err, "userinfo fetch failed")
		c.JSON(http.StatusBadGateway, handler.NewErrorResponse("authorization failed"))
		return
	}

	user, err := h.users.GetByEmail(ctx, info.Email)
	if apperrors.IsNotFound(err) {
		user = &model.User{
			Email: info.Email,
			Name:  info.Name,
			Tier:  model.TierFree,
		}
		err = h.users.Create(ctx, user)
	}
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if err := h.credentials.Store(ctx, user.ID, tokens); err != nil {
		handler.RespondError(c, err)
		return
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Email, string(user.Tier), user.IsAdmin)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.logger.Info("user signed in", map[string]interface{}{"user_id": user.ID.String()})
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"token": token,
		"user":  user,
	}))
}
