package api

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
)

// failingApp serves one route that returns the given error, routed through
// the API's error handler with the given admin token configured.
func failingApp(token string, err error) *fiber.App {
	a := &API{AdminToken: token}
	app := fiber.New(fiber.Config{ErrorHandler: a.ErrorHandler})
	app.Get("/fail", func(c *fiber.Ctx) error { return err })
	return app
}

func TestErrorHandlerMapsTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperrors.Validationf("bid below base price"), fiber.StatusBadRequest},
		{"authorization", apperrors.Authorizationf("only the last bidder may undo"), fiber.StatusForbidden},
		{"not found", apperrors.NotFound("auction", "deadbeef"), fiber.StatusNotFound},
		{"consistency", apperrors.Consistencyf("sold player has no buyer"), fiber.StatusConflict},
		{"transient", apperrors.Transient("broadcast publish", errors.New("down")), fiber.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := failingApp("secret", tc.err)
			resp, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
			assert.NoError(t, err)

			check.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestErrorHandlerHidesInternalDetailFromViewers(t *testing.T) {
	app := failingApp("secret", errors.New("pq: duplicate key value violates unique constraint"))

	resp, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
	assert.NoError(t, err)
	check.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	check.True(t, !strings.Contains(string(b), "duplicate key"))
	check.True(t, strings.Contains(string(b), "retry"))
}

func TestErrorHandlerShowsReasonToAdmins(t *testing.T) {
	app := failingApp("secret", errors.New("pq: duplicate key value violates unique constraint"))

	req := httptest.NewRequest("GET", "/fail", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	check.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	check.True(t, strings.Contains(string(b), "duplicate key"))
}

func TestErrorHandlerKeepsValidationReasonForViewers(t *testing.T) {
	app := failingApp("secret", apperrors.Validationf("bid 9000 below base price 10000"))

	resp, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
	assert.NoError(t, err)
	check.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	check.True(t, strings.Contains(string(b), "below base price"))
}
