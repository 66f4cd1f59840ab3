package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	xerrors "ledroitcheck-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func run(fn func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	fn(c)
	var body Response
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestFailMapsDomainErrors(t *testing.T) {
	rec, body := run(func(c *gin.Context) {
		Fail(c, "cannot open", fmt.Errorf("open: %w", xerrors.ErrAlreadyOpen))
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "already_open", body.Reason)
	assert.NotEmpty(t, body.Error)
}

func TestFailHidesServerErrors(t *testing.T) {
	rec, body := run(func(c *gin.Context) {
		Fail(c, "failed", fmt.Errorf("%w: %v", xerrors.ErrUnavailable, errors.New("dial tcp 10.0.0.1:5432")))
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body.Reason)
	assert.Empty(t, body.Error)

	rec, body = run(func(c *gin.Context) { Fail(c, "failed", errors.New("boom")) })
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", body.Reason)
	assert.Empty(t, body.Error)
}

func TestSuccessDefaultsToOK(t *testing.T) {
	rec, body := run(func(c *gin.Context) { Success(c, 0, "ok", map[string]int{"n": 1}) })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
}
