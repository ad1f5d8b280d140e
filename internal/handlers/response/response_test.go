package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestFromError_RegisteredError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/s/abc/download", nil)

	FromError(c, fmt.Errorf("PrepareDownload: %w", xerr.WithReason(xerr.ErrShareUnavailable, "share_expired")))

	assert.Equal(t, http.StatusGone, w.Code)
	resp := decode(t, w)
	assert.Equal(t, xerr.ShareUnavailableCode, resp.Code)
	assert.Equal(t, "share_expired", resp.Reason)
}

func TestFromError_UnknownErrorHidesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	FromError(c, errors.New("dial tcp 10.0.0.1:3306: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, xerr.InternalServerErrorCode, resp.Code)
	assert.Equal(t, xerr.ErrInternalServer.Error(), resp.Message)
}

type loginBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=12"`
}

func TestBindError_ValidationDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	err := binding.Validator.ValidateStruct(&loginBody{Email: "nope", Password: "short"})
	require.Error(t, err)
	BindError(c, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "validation_failed", resp.Reason)
	assert.Equal(t, "email", resp.Details["email"])
	assert.Equal(t, "min", resp.Details["password"])
}
