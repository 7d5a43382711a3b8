package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/jetstore/storefront/internal/handlers"
	"github.com/jetstore/storefront/internal/middleware/csrf"
	"github.com/jetstore/storefront/internal/service/token"
)

type Deps struct {
	DB             *gorm.DB
	AuthHandler    *handlers.AuthHandler
	AccountHandler *handlers.AccountHandler
	ProductHandler *handlers.ProductHandler
	CartHandler    *handlers.CartHandler
	Tokens         *token.TokenService
}

// Register wires every route. All state-changing actions use unsafe methods
// and sit behind the CSRF middleware; none of them is reachable via GET.
func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1", csrf.Middleware(csrf.Config{
		SkipPaths: []string{"/api/v1/register", "/api/v1/login"},
	}))

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)

	v1.GET("/products", d.ProductHandler.ListProducts, d.Tokens.WithIdentity)

	account := v1.Group("/account", d.Tokens.RequireAuth)
	account.GET("", d.AccountHandler.GetAccount)
	account.PUT("", d.AccountHandler.UpdateAccount)

	cart := v1.Group("/cart", d.Tokens.RequireAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("/items/:product_id", d.CartHandler.AddToCart)
	cart.PUT("/items/:product_id", d.CartHandler.UpdateQuantity)
	cart.DELETE("/items/:product_id", d.CartHandler.RemoveFromCart)

	v1.POST("/checkout", d.CartHandler.Checkout, d.Tokens.RequireAuth)

	admin := v1.Group("/admin", d.Tokens.RequireAdmin)
	admin.GET("/products", d.ProductHandler.AdminListProducts)
	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
}
