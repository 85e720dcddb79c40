package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
)

func TestErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.Internal(errors.New("pq: connection refused"), "failed to load quest"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Message)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Len(t, c.Errors, 1)
}

func TestErrorKeepsDomainMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.Clone(appErrors.ErrConflict, "already attended"))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"message":"already attended","code":"CONFLICT"}`, w.Body.String())
	assert.Empty(t, c.Errors)
}
