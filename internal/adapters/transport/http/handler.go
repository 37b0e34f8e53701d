package http

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/clipstream/account-service/internal/account/dto"
	customErrors "github.com/clipstream/account-service/internal/account/errors"
	"github.com/clipstream/account-service/internal/account/model"
	"github.com/clipstream/account-service/internal/account/service"
	"github.com/clipstream/account-service/internal/adapters/transport/http/middleware"
	"github.com/clipstream/account-service/internal/config"
	"github.com/clipstream/account-service/internal/media"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	svc service.AccountService
	log *zap.Logger
	cfg *config.Config
}

func NewHandler(svc service.AccountService, log *zap.Logger, cfg *config.Config) *Handler {
	return &Handler{svc: svc, log: log, cfg: cfg}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	users := r.Group("/api/v1/users")

	users.POST("/register", h.register)
	users.POST("/login", h.login)
	users.POST("/refresh-token", h.refresh)
	users.GET("/c/:username", middleware.OptionalAuth(h.svc), h.channelProfile)

	authed := users.Group("", middleware.RequireAuth(h.svc))
	authed.POST("/logout", h.logout)
	authed.POST("/change-password", h.changePassword)
	authed.GET("/current", h.currentUser)
	authed.PATCH("/update-account-details", h.updateAccountDetails)
	authed.PATCH("/update-avatar", h.updateAvatar)
	authed.PATCH("/update-cover-image", h.updateCoverImage)
}

func (h *Handler) register(c *gin.Context) {
	var body dto.RegisterDTO
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	avatar, closeAvatar, err := formUpload(c, "avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar image is required"})
		return
	}
	defer closeAvatar()

	// Cover image is optional; absence is an ordinary branch, not an error.
	cover, closeCover, err := formUpload(c, "coverImage")
	if err == nil {
		defer closeCover()
	} else {
		cover = nil
	}

	user, err := h.svc.Register(c.Request.Context(), body, *avatar, cover)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": user, "message": "user created successfully"})
}

func (h *Handler) login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.setSessionCookies(c, result.Tokens)
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"user":         result.User,
			"accessToken":  result.Tokens.AccessToken,
			"refreshToken": result.Tokens.RefreshToken,
		},
		"message": "logged in successfully",
	})
}

func (h *Handler) refresh(c *gin.Context) {
	token, _ := c.Cookie("refresh_token")
	if token == "" {
		var body dto.RefreshDTO
		if err := c.ShouldBindJSON(&body); err == nil {
			token = body.RefreshToken
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), dto.RefreshDTO{RefreshToken: token})
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"accessToken":  pair.AccessToken,
			"refreshToken": pair.RefreshToken,
			"expiresIn":    int(pair.AccessTTL.Seconds()),
		},
		"message": "tokens refreshed",
	})
}

func (h *Handler) logout(c *gin.Context) {
	user := mustCurrentUser(c)

	if err := h.svc.Logout(c.Request.Context(), user.ID); err != nil {
		h.handleError(c, err)
		return
	}

	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{}, "message": "logged out"})
}

func (h *Handler) changePassword(c *gin.Context) {
	user := mustCurrentUser(c)

	var body dto.ChangePasswordDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), user.ID, body); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{}, "message": "password changed"})
}

func (h *Handler) currentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": mustCurrentUser(c), "message": "current user"})
}

func (h *Handler) updateAccountDetails(c *gin.Context) {
	user := mustCurrentUser(c)

	var body dto.UpdateProfileDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.svc.UpdateProfileFields(c.Request.Context(), user.ID, body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated, "message": "account details updated"})
}

func (h *Handler) updateAvatar(c *gin.Context) {
	h.updateImage(c, "avatar", h.svc.UpdateAvatar)
}

func (h *Handler) updateCoverImage(c *gin.Context) {
	h.updateImage(c, "coverImage", h.svc.UpdateCoverImage)
}

func (h *Handler) updateImage(c *gin.Context, field string, update func(context.Context, uuid.UUID, media.Upload) (model.PublicUser, error)) {
	user := mustCurrentUser(c)

	up, closeUpload, err := formUpload(c, field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return
	}
	defer closeUpload()

	updated, err := update(c.Request.Context(), user.ID, *up)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated, "message": field + " updated"})
}

func (h *Handler) channelProfile(c *gin.Context) {
	username := c.Param("username")

	var viewerID *uuid.UUID
	if v, ok := c.Get(middleware.CurrentUserKey); ok {
		if user, ok := v.(model.PublicUser); ok {
			id := user.ID
			viewerID = &id
		}
	}

	profile, err := h.svc.GetChannelProfile(c.Request.Context(), viewerID, username)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile, "message": "channel profile"})
}

func (h *Handler) setSessionCookies(c *gin.Context, pair model.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		"access_token",
		pair.AccessToken,
		int(pair.AccessTTL.Seconds()),
		"/",
		h.cfg.CookieDomain,
		true, // secure
		true, // httpOnly
	)

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		"refresh_token",
		pair.RefreshToken,
		int(pair.RefreshTTL.Seconds()),
		"/",
		h.cfg.CookieDomain,
		true,
		true,
	)
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	c.SetCookie("access_token", "", -1, "/", h.cfg.CookieDomain, true, true)
	c.SetCookie("refresh_token", "", -1, "/", h.cfg.CookieDomain, true, true)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case customErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case customErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case customErrors.IsTokenExpired(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
	case customErrors.IsTokenReuse(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token is expired or already used"})
	case customErrors.IsInvalidToken(err), customErrors.IsUnauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case customErrors.IsAlreadyExists(err):
		c.JSON(http.StatusConflict, gin.H{"error": "user with same username or email already exists"})
	case customErrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case customErrors.IsUploadFailed(err):
		h.log.Error("media upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "image upload failed"})
	default:
		h.log.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func mustCurrentUser(c *gin.Context) model.PublicUser {
	return c.MustGet(middleware.CurrentUserKey).(model.PublicUser)
}

// formUpload opens the named multipart file. The returned closer must be
// called after the upload body has been consumed.
func formUpload(c *gin.Context, field string) (*media.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &media.Upload{
		Body:        f,
		Size:        fh.Size,
		ContentType: contentType(fh),
	}, func() { f.Close() }, nil
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
