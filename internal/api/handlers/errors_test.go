package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipe/zapgate/internal/service/instance"
)

func respondWith(t *testing.T, err error) (int, string) {
	t.Helper()

	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return respondServiceError(c, err)
	})

	resp, reqErr := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, reqErr)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp.StatusCode, string(body)
}

func TestRespondServiceErrorMapsSentinels(t *testing.T) {
	status, body := respondWith(t, fmt.Errorf("%w: instance 5511999887766 has status inactive", instance.ErrNotConnected))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "NOT_CONNECTED")

	status, body = respondWith(t, instance.ErrInstanceNotFound)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "NOT_FOUND")
}

func TestRespondServiceErrorHidesInternalDetail(t *testing.T) {
	status, body := respondWith(t, errors.New("pq: connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "INTERNAL_ERROR")
	assert.Contains(t, body, "internal server error")
	// o detalhe fica no log, nunca na resposta
	assert.NotContains(t, body, "connection reset")
}
