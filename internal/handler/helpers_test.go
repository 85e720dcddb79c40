package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/levelup-edu/levelup-api/internal/middleware"
	"github.com/levelup-edu/levelup-api/internal/models"
)

var (
	ada = &models.JWTClaims{Email: "ada@school.test", Name: "Ada", Role: models.RoleInstructor}
	sam = &models.JWTClaims{Email: "sam@school.test", Name: "Sam", Role: models.RoleStudent}
)

func newContext(method, target, body string, claims *models.JWTClaims, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Params = params
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func param(key, value string) gin.Params {
	return gin.Params{{Key: key, Value: value}}
}

// decodeData unmarshals the envelope's data field into dest.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	if dest != nil {
		require.NoError(t, json.Unmarshal(envelope["data"], dest))
	}
	return envelope
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}
