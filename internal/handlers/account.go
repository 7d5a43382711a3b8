package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/jetstore/storefront/internal/events"
	"github.com/jetstore/storefront/internal/models"
)

type AccountHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

// GetAccount returns the current profile so the edit form can pre-fill.
func (h *AccountHandler) GetAccount(c echo.Context) error {
	userID, err := requesterID(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, user)
}

func (h *AccountHandler) UpdateAccount(c echo.Context) error {
	userID, err := requesterID(c)
	if err != nil {
		return err
	}

	var req struct {
		FirstName string `json:"first_name" form:"first_name"`
		LastName  string `json:"last_name"  form:"last_name"`
		Email     string `json:"email"      form:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var other models.User
	err = h.DB.Where("email = ? AND id <> ?", req.Email, userID).First(&other).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Email = req.Email
	// Role stays whatever it was; this path never grants or revokes admin.
	if err := h.DB.Save(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "account_updated",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"user":    user,
		"message": "your account has been updated",
	})
}
