package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/jetstore/storefront/internal/models"
)

func TestAddToCartTwiceKeepsOneRow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("a@x.com", "pw123", models.RoleUser)
	prod := env.createProduct("Widget", 10)

	env.addToCart(user, prod.ID)
	env.addToCart(user, prod.ID)

	var rows []models.CartItem
	require.NoError(t, env.DB.Where("user_id = ? AND product_id = ?", user.ID, prod.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, uint(2), rows[0].Quantity)
}

func TestAddToCartMessages(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("a@x.com", "pw123", models.RoleUser)
	prod := env.createProduct("Widget", 10)

	rec, c := env.doJSON(http.MethodPost, "/api/v1/cart/items/:product_id", nil)
	c.SetParamNames("product_id")
	c.SetParamValues(itoa(prod.ID))
	asUser(c, user)
	require.NoError(t, env.Cart.AddToCart(c))

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Equal(t, "item added to your cart", first["message"])

	rec, c = env.doJSON(http.MethodPost, "/api/v1/cart/items/:product_id", nil)
	c.SetParamNames("product_id")
	c.SetParamValues(itoa(prod.ID))
	asUser(c, user)
	require.NoError(t, env.Cart.AddToCart(c))

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Equal(t, "this item is already in your cart, 1 quantity added", second["message"])
}

func TestAddToCartUnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("a@x.com", "pw123", models.RoleUser)

	_, c := env.doJSON(http.MethodPost, "/api/v1/cart/items/:product_id", nil)
	c.SetParamNames("product_id")
	c.SetParamValues("999")
	asUser(c, user)

	err := env.Cart.AddToCart(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestCartSubtotalAfterQuantityEdit(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("a@x.com", "pw123", models.RoleUser)
	p1 := env.createProduct("Widget", 10)
	p2 := env.createProduct("Gadget", 7)

	env.addToCart(user, p1.ID)
	env.addToCart(user, p2.ID)

	view := env.cartView(user)
	require.Equal(t, 17, view.Subtotal)

	rec, c := env.doJSON(http.MethodPut, "/api/v1/cart/items/:product_id", map[string]interface{}{"quantity": 3})
	c.SetParamNames("product_id")
	c.SetParamValues(itoa(p2.ID))
	asUser(c, user)
	require.NoError(t, env.Cart.UpdateQuantity(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated CartView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, 10*1+7*3, updated.Subtotal)

	// The view recomputes identically on the next read.
	require.Equal(t, updated.Subtotal, env.cartView(user).Subtotal)
}

func TestUpdateQuantityRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("a@x.com", "pw123", models.RoleUser)
	prod := env.createProduct("Widget", 10)
	env.addToCart(user, prod.ID)

	for _, qty := range []int{0, -3} {
		_, c := env.doJSON(http.MethodPut, "/api/v1/cart/items/:product_id", map[string]interface{}{"quantity": qty})
		c.SetParamNames("product_id")
		c.SetParamValues(itoa(prod.ID))
		asUser(c, user)

		err := env.Cart.UpdateQuantity(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		require.Equal(t, http.StatusBadRequest, he.Code)
	}

	_, c := env.doJSON(http.MethodPut, "/api/v1/cart/items/:product_id", map[string]interface{}{"quantity": "lots"})
	c.SetParamNames("product_id")
	c.SetParamValues(itoa(prod.ID))
	asUser(c, user)
	err := env.Cart.UpdateQuantity(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)

	// Nothing changed.
	var item models.CartItem
	require.NoError(t, env.DB.Where("user_id = ? AND product_id = ?", user.ID, prod.ID).First(&item).Error)
	require.Equal(t, uint(1), item.Quantity)
}

func TestUpdateQuantityMissingEntry(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("a@x.com", "pw123", models.RoleUser)
	prod := env.createProduct("Widget", 10)

	_, c := env.doJSON(http.MethodPut, "/api/v1/cart/items/:product_id", map[string]interface{}{"quantity": 2})
	c.SetParamNames("product_id")
	c.SetParamValues(itoa(prod.ID))
	asUser(c, user)

	err := env.Cart.UpdateQuantity(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestUpdateQuantityEnforcesOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("a@x.com", "pw123", models.RoleUser)
	other := env.createUser("b@x.com", "pw123", models.RoleUser)
	prod := env.createProduct("Widget", 10)
	env.addToCart(owner, prod.ID)

	_, c := env.doJSON(http.MethodPut, "/api/v1/cart/items/:product_id", map[string]interface{}{"quantity": 5})
	c.SetParamNames("product_id")
	c.SetParamValues(itoa(prod.ID))
	asUser(c, other)

	err := env.Cart.UpdateQuantity(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Code)

	var item models.CartItem
	require.NoError(t, env.DB.Where("user_id = ?", owner.ID).First(&item).Error)
	require.Equal(t, uint(1), item.Quantity)
}

func TestRemoveFromCartMissingEntry(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("a@x.com", "pw123", models.RoleUser)

	_, c := env.doJSON(http.MethodDelete, "/api/v1/cart/items/:product_id", nil)
	c.SetParamNames("product_id")
	c.SetParamValues("42")
	asUser(c, user)

	err := env.Cart.RemoveFromCart(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestCheckoutClearsOnlyOwnCart(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("a@x.com", "pw123", models.RoleUser)
	bob := env.createUser("b@x.com", "pw123", models.RoleUser)
	prod := env.createProduct("Widget", 10)

	env.addToCart(alice, prod.ID)
	env.addToCart(bob, prod.ID)

	rec, c := env.doJSON(http.MethodPost, "/api/v1/checkout", nil)
	asUser(c, alice)
	require.NoError(t, env.Cart.Checkout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var aliceRows, bobRows int64
	require.NoError(t, env.DB.Model(&models.CartItem{}).Where("user_id = ?", alice.ID).Count(&aliceRows).Error)
	require.NoError(t, env.DB.Model(&models.CartItem{}).Where("user_id = ?", bob.ID).Count(&bobRows).Error)
	require.Equal(t, int64(0), aliceRows)
	require.Equal(t, int64(1), bobRows)
}

func TestCartSingleProductScenario(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("a@x.com", "pw123", models.RoleUser)
	p1 := env.createProduct("P1", 10)

	env.addToCart(user, p1.ID)
	view := env.cartView(user)
	require.Len(t, view.Items, 1)
	require.Equal(t, uint(1), view.Items[0].Quantity)
	require.Equal(t, 10, view.Subtotal)

	env.addToCart(user, p1.ID)
	view = env.cartView(user)
	require.Len(t, view.Items, 1)
	require.Equal(t, uint(2), view.Items[0].Quantity)
	require.Equal(t, 20, view.Subtotal)

	rec, c := env.doJSON(http.MethodDelete, "/api/v1/cart/items/:product_id", nil)
	c.SetParamNames("product_id")
	c.SetParamValues(itoa(p1.ID))
	asUser(c, user)
	require.NoError(t, env.Cart.RemoveFromCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	view = env.cartView(user)
	require.Empty(t, view.Items)
	require.Equal(t, 0, view.Subtotal)
}

func TestCheckoutTwoProductScenario(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("a@x.com", "pw123", models.RoleUser)
	p1 := env.createProduct("P1", 5)
	p2 := env.createProduct("P2", 7)

	env.addToCart(user, p1.ID)
	env.addToCart(user, p2.ID)
	env.addToCart(user, p2.ID)

	view := env.cartView(user)
	require.Equal(t, 5*1+7*2, view.Subtotal)

	rec, c := env.doJSON(http.MethodPost, "/api/v1/checkout", nil)
	asUser(c, user)
	require.NoError(t, env.Cart.Checkout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message      string `json:"message"`
		Subtotal     int    `json:"subtotal"`
		ItemsCleared int    `json:"items_cleared"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "your purchase is successful", resp.Message)
	require.Equal(t, 19, resp.Subtotal)
	require.Equal(t, 2, resp.ItemsCleared)

	require.Empty(t, env.cartView(user).Items)
}

func TestCheckoutEmptyCartStillSucceeds(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("a@x.com", "pw123", models.RoleUser)

	rec, c := env.doJSON(http.MethodPost, "/api/v1/checkout", nil)
	asUser(c, user)
	require.NoError(t, env.Cart.Checkout(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCartRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSON(http.MethodGet, "/api/v1/cart", nil)
	err := env.Cart.GetCart(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}
