package models

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithAppError_Details(t *testing.T) {
	cause := errors.New(`UNIQUE constraint failed: users.email`)

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails string
	}{
		{"conflict hides cause", NewConflictError("Email already registered", cause), fiber.StatusConflict, CodeConflict, ""},
		{"store hides cause", NewStoreUnavailableError(cause), fiber.StatusServiceUnavailable, CodeStoreUnavailable, ""},
		{"internal hides cause", NewInternalError(cause), fiber.StatusInternalServerError, CodeInternal, ""},
		{"token cause is shown", NewInvalidCredentialError(errors.New("token is expired")), fiber.StatusUnauthorized, CodeInvalidCredential, "token is expired"},
		{"plain error is internal", cause, fiber.StatusInternalServerError, CodeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return RespondWithAppError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantDetails, body.Details)
			assert.NotContains(t, body.Error, "UNIQUE")
		})
	}
}
