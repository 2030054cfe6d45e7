package controllers

import (
	"log/slog"
	"net/http"
	"time"

	"committeehub/middlewares"
	"committeehub/services"
	"committeehub/structs"
	"committeehub/utils"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	base
	auth          *services.AuthService
	secureCookies bool
}

func NewAuthController(auth *services.AuthService, logger *slog.Logger, timeout time.Duration, secureCookies bool) *AuthController {
	return &AuthController{base: newBase(logger, timeout), auth: auth, secureCookies: secureCookies}
}

func (h *AuthController) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middlewares.TokenCookie, token, maxAge, "/", "", h.secureCookies, true)
}

func (h *AuthController) Register(c *gin.Context) {
	var req structs.RegisterRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	session, err := h.auth.Register(ctx, services.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, session.Token, int(utils.TokenExpiry().Seconds()))
	c.JSON(http.StatusCreated, session)
}

func (h *AuthController) Login(c *gin.Context) {
	var req structs.LoginRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	session, err := h.auth.Login(ctx, services.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, session.Token, int(utils.TokenExpiry().Seconds()))
	c.JSON(http.StatusOK, session)
}

func (h *AuthController) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthController) Me(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	user, err := h.auth.Me(ctx, identity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthController) UpdateProfile(c *gin.Context) {
	var req structs.UpdateProfileRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	user, err := h.auth.UpdateProfile(ctx, identity(c), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
