package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jetstore/storefront/internal/events"
	"github.com/jetstore/storefront/internal/models"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

type CartLine struct {
	ProductID uint    `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  uint    `json:"quantity"`
	LineTotal int     `json:"line_total"`
}

type CartView struct {
	Items    []CartLine `json:"items"`
	Subtotal int        `json:"subtotal"`
}

// loadCart joins the requester's cart rows with the catalog. Line totals and
// the subtotal use integer-coerced price and quantity.
func (h *CartHandler) loadCart(db *gorm.DB, userID uint) (CartView, error) {
	view := CartView{Items: []CartLine{}}

	err := db.Model(&models.CartItem{}).
		Select("cart_items.product_id, products.name, products.price, cart_items.quantity").
		Joins("JOIN products ON products.id = cart_items.product_id").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.id ASC").
		Scan(&view.Items).Error
	if err != nil {
		return view, err
	}

	for i := range view.Items {
		line := &view.Items[i]
		line.LineTotal = int(line.Price) * int(line.Quantity)
		view.Subtotal += line.LineTotal
	}
	return view, nil
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := requesterID(c)
	if err != nil {
		return err
	}

	view, err := h.loadCart(h.DB, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}

// AddToCart inserts a cart row with quantity 1 or bumps the existing row by
// exactly 1, as a single upsert under the (user, product) unique index.
func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := requesterID(c)
	if err != nil {
		return err
	}

	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var prod models.Product
	if err := h.DB.First(&prod, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	item := models.CartItem{UserID: userID, ProductID: uint(productID), Quantity: 1}
	err = h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity": gorm.Expr("cart_items.quantity + 1"),
		}),
	}).Create(&item).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.DB.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	message := "item added to your cart"
	if item.Quantity > 1 {
		message = "this item is already in your cart, 1 quantity added"
	}

	publish(c, h.Producer, events.TopicCartEvents, fmt.Sprint(userID), map[string]interface{}{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": productID,
		"quantity":  item.Quantity,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"item":    item,
		"message": message,
	})
}

// UpdateQuantity overwrites the quantity of one cart entry. The entry must
// belong to the requester and the quantity must be a positive integer.
func (h *CartHandler) UpdateQuantity(c echo.Context) error {
	userID, err := requesterID(c)
	if err != nil {
		return err
	}

	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var req struct {
		Quantity int `json:"quantity" form:"qty"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be a number")
	}
	if req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be a positive integer")
	}

	var item models.CartItem
	if err := h.DB.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	item.Quantity = uint(req.Quantity)
	if err := h.DB.Save(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	publish(c, h.Producer, events.TopicCartEvents, fmt.Sprint(userID), map[string]interface{}{
		"type":      "cart_quantity_updated",
		"userID":    userID,
		"productID": productID,
		"quantity":  item.Quantity,
	})

	view, err := h.loadCart(h.DB, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	userID, err := requesterID(c)
	if err != nil {
		return err
	}

	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var item models.CartItem
	if err := h.DB.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.DB.Delete(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	publish(c, h.Producer, events.TopicCartEvents, fmt.Sprint(userID), map[string]interface{}{
		"type":      "cart_item_removed",
		"userID":    userID,
		"productID": productID,
	})

	view, err := h.loadCart(h.DB, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "your item has been removed from your cart",
		"cart":    view,
	})
}

// Checkout empties the requester's cart. No payment capture, no order record,
// no stock decrement.
func (h *CartHandler) Checkout(c echo.Context) error {
	userID, err := requesterID(c)
	if err != nil {
		return err
	}

	var view CartView
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		view, err = h.loadCart(tx, userID)
		if err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if txErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	publish(c, h.Producer, events.TopicCartEvents, fmt.Sprint(userID), map[string]interface{}{
		"type":     "checkout_completed",
		"userID":   userID,
		"subtotal": view.Subtotal,
		"items":    len(view.Items),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message":       "your purchase is successful",
		"subtotal":      view.Subtotal,
		"items_cleared": len(view.Items),
	})
}
