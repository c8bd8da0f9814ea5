package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AuthMiddleware validates operator JWT tokens. Browsers cannot set headers on an
// EventSource, so the token may also come in the access_token query parameter.
func (s *Server) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.authService == nil {
			return next(c)
		}

		token := c.QueryParam("access_token")
		if authHeader := c.Request().Header.Get(echo.HeaderAuthorization); authHeader != "" {
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header"})
			}
			token = parts[1]
		}
		if token == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
		}

		claims, err := s.authService.ValidateToken(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		}

		c.Set("operator", claims.Subject)
		return next(c)
	}
}

// GetOperator extracts the authenticated operator from the echo context.
func GetOperator(c echo.Context) string {
	op, _ := c.Get("operator").(string)
	return op
}
