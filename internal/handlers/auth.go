package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/jetstore/storefront/internal/events"
	"github.com/jetstore/storefront/internal/hash"
	"github.com/jetstore/storefront/internal/models"
	"github.com/jetstore/storefront/internal/service/token"
)

type AuthHandler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	AdminEmail    string
	Producer      *events.Producer
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		FirstName string `json:"first_name" form:"first_name"`
		LastName  string `json:"last_name"  form:"last_name"`
		Email     string `json:"email"      form:"email"`
		Password  string `json:"password"   form:"password"`
	}

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not hash password")
	}

	role := models.RoleUser
	if h.AdminEmail != "" && req.Email == strings.ToLower(h.AdminEmail) {
		role = models.RoleAdmin
	}

	user := models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         role,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"user":    user,
		"message": "your account has been created",
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"    form:"email"`
		Password string `json:"password" form:"password"`
		Remember bool   `json:"remember" form:"remember"`
		Next     string `json:"next"     form:"next"`
	}

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	// Same message for an unknown email and a wrong password.
	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "login unsuccessful, please check email and password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "login unsuccessful, please check email and password")
	}

	accessToken, err := token.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create access token")
	}

	refreshTTL := token.RefreshTTL
	if req.Remember {
		refreshTTL = token.RememberRefreshTTL
	}
	refreshToken, err := token.SignRefreshToken(user.ID, user.Role, h.RefreshSecret, refreshTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create refresh token")
	}
	if err := token.SaveRefreshToken(h.DB, refreshToken, user.ID, user.Role, refreshTTL); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.SetCookie(token.NewCookie(token.AccessCookie, accessToken, "/", time.Now().Add(token.AccessTTL)))
	c.SetCookie(token.NewCookie(token.RefreshCookie, refreshToken, "/", time.Now().Add(refreshTTL)))

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "user_logged_in",
		"userID": user.ID,
		"email":  user.Email,
	})

	next := req.Next
	if next == "" {
		next = "/"
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"is_admin":      user.IsAdmin(),
		"next":          next,
	})
}

// LogOut clears the session unconditionally; calling it without an active
// session is fine.
func (h *AuthHandler) LogOut(c echo.Context) error {
	if refreshCookie, err := c.Cookie(token.RefreshCookie); err == nil && refreshCookie.Value != "" {
		result := h.DB.Model(&models.RefreshToken{}).
			Where("token = ?", refreshCookie.Value).
			Update("revoked", true)
		if result.Error != nil {
			c.Logger().Errorf("refresh token revoke error: %v", result.Error)
		}
	}

	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(token.NewCookie(token.AccessCookie, "", "/", expired))
	c.SetCookie(token.NewCookie(token.RefreshCookie, "", "/", expired))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "logged out",
	})
}
