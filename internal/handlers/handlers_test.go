package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jetstore/storefront/internal/events"
	"github.com/jetstore/storefront/internal/hash"
	"github.com/jetstore/storefront/internal/models"
)

const testAdminEmail = "admin@jetstore.com"

type testEnv struct {
	T       *testing.T
	E       *echo.Echo
	DB      *gorm.DB
	Auth    *AuthHandler
	Account *AccountHandler
	Product *ProductHandler
	Cart    *CartHandler
}

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.CartItem{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := initTestDB(t)
	jwtSecret := []byte("test-jwt-secret")
	refreshSecret := []byte("test-refresh-secret")
	prod := &events.Producer{}

	return &testEnv{
		T:  t,
		E:  echo.New(),
		DB: db,
		Auth: &AuthHandler{
			DB:            db,
			JWTSecret:     jwtSecret,
			RefreshSecret: refreshSecret,
			AdminEmail:    testAdminEmail,
			Producer:      prod,
		},
		Account: &AccountHandler{DB: db, Producer: prod},
		Product: &ProductHandler{DB: db, Producer: prod},
		Cart:    &CartHandler{DB: db, Producer: prod},
	}
}

func (env *testEnv) doJSON(method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

// asUser mimics what the auth middleware puts into the request context.
func asUser(c echo.Context, user *models.User) {
	c.Set("userID", user.ID)
	c.Set("role", user.Role)
}

func (env *testEnv) createUser(email, password, role string) *models.User {
	env.T.Helper()

	passwordHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)

	user := &models.User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	}
	require.NoError(env.T, env.DB.Create(user).Error)
	return user
}

func (env *testEnv) createProduct(name string, price float64) *models.Product {
	env.T.Helper()

	prod := &models.Product{Name: name, Description: name + " description", Price: price}
	require.NoError(env.T, env.DB.Create(prod).Error)
	return prod
}

func (env *testEnv) addToCart(user *models.User, productID uint) {
	env.T.Helper()

	rec, c := env.doJSON(http.MethodPost, "/api/v1/cart/items/:product_id", nil)
	c.SetParamNames("product_id")
	c.SetParamValues(itoa(productID))
	asUser(c, user)
	require.NoError(env.T, env.Cart.AddToCart(c))
	require.Equal(env.T, http.StatusOK, rec.Code)
}

func (env *testEnv) cartView(user *models.User) CartView {
	env.T.Helper()

	rec, c := env.doJSON(http.MethodGet, "/api/v1/cart", nil)
	asUser(c, user)
	require.NoError(env.T, env.Cart.GetCart(c))
	require.Equal(env.T, http.StatusOK, rec.Code)

	var view CartView
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
