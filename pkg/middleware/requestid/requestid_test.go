package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, header string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(headerKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return seen, w.Header().Get(headerKey)
}

func TestMiddlewareGeneratesID(t *testing.T) {
	seen, returned := run(t, "")
	assert.Equal(t, seen, returned)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestMiddlewareKeepsClientID(t *testing.T) {
	seen, returned := run(t, "trace-123")
	assert.Equal(t, "trace-123", seen)
	assert.Equal(t, "trace-123", returned)
}

func TestMiddlewareReplacesOversizedID(t *testing.T) {
	seen, _ := run(t, strings.Repeat("x", maxLength+1))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}
