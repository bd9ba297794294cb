package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-annotation-api/internal/middleware"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func jwtApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.JWTProtected("secret"))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":    c.Locals(middleware.LocalUserID),
			"role":  c.Locals(middleware.LocalUserRole),
			"email": c.Locals(middleware.LocalUserEmail),
		})
	})
	return app
}

func TestJWTProtectedPopulatesLocals(t *testing.T) {
	token := signToken(t, "secret", jwt.MapClaims{
		"sub":   "7",
		"email": "A@Example.com",
		"role":  "annotator",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := jwtApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decodeJSON(t, resp, &body)
	require.Equal(t, float64(7), body["id"])
	require.Equal(t, "annotator", body["role"])
	require.Equal(t, "a@example.com", body["email"])
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"wrong secret": "Bearer " + signToken(t, "other", jwt.MapClaims{
			"sub": "1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
		}),
		"expired": "Bearer " + signToken(t, "secret", jwt.MapClaims{
			"sub": "1", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"no expiry": "Bearer " + signToken(t, "secret", jwt.MapClaims{"sub": "1", "role": "admin"}),
		"no role": "Bearer " + signToken(t, "secret", jwt.MapClaims{
			"sub": "1", "exp": time.Now().Add(time.Hour).Unix(),
		}),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := jwtApp().Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func decodeJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
