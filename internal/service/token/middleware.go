package token

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/jetstore/storefront/internal/models"
)

// RequireAuth rejects anonymous requests. An expired access token is rotated
// transparently through the refresh token before the handler runs.
func (t *TokenService) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		newAccess, newRefresh, _, err := t.CheckCookie(c)
		if err != nil {
			return err
		}

		if newRefresh == "" {
			return next(c)
		}

		t.setRotatedCookies(c, newAccess, newRefresh)
		return next(c)
	}
}

// RequireAdmin is RequireAuth plus a role check on the token claims. The
// admin identity is a role column on the user, not an email comparison.
func (t *TokenService) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		newAccess, newRefresh, role, err := t.CheckCookie(c)
		if err != nil {
			return err
		}

		if role != models.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "you do not have access to this page")
		}

		if newRefresh != "" {
			t.setRotatedCookies(c, newAccess, newRefresh)
		}
		return next(c)
	}
}

// WithIdentity resolves the requester when possible but never fails the
// request: anonymous catalog browsing still needs a cart count of zero.
func (t *TokenService) WithIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		asCookie, err := c.Cookie(AccessCookie)
		if err != nil || asCookie.Value == "" {
			return next(c)
		}
		token, err := jwt.Parse(asCookie.Value, func(j *jwt.Token) (interface{}, error) {
			return t.JWTSecret, nil
		})
		if err != nil || !token.Valid {
			return next(c)
		}
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if _, ok := claims["sub"].(float64); ok {
				setUserContext(c, claims)
			}
		}
		return next(c)
	}
}

func (t *TokenService) setRotatedCookies(c echo.Context, access, refresh string) {
	c.SetCookie(NewCookie(AccessCookie, access, "/", time.Now().Add(AccessTTL)))
	c.SetCookie(NewCookie(RefreshCookie, refresh, "/", time.Now().Add(RefreshTTL)))

	token, _ := jwt.Parse(access, func(j *jwt.Token) (interface{}, error) { return t.JWTSecret, nil })
	if token != nil {
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			setUserContext(c, claims)
		}
	}
}
