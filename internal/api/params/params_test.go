package params

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestBindJSON(t *testing.T) {
	type input struct {
		Name string `json:"name" binding:"required,max=5"`
	}

	c, _ := testContext(http.MethodPost, "/", `{"name":"club"}`)
	var in input
	require.True(t, BindJSON(c, &in))
	assert.Equal(t, "club", in.Name)

	c, w := testContext(http.MethodPost, "/", `{"name":"far too long"}`)
	assert.False(t, BindJSON(c, &in))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Name failed max")

	c, w = testContext(http.MethodPost, "/", `{`)
	assert.False(t, BindJSON(c, &in))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOptionalTime(t *testing.T) {
	c, _ := testContext(http.MethodGet, "/?before=2026-05-01T21:00:00%2B09:00", "")
	got, ok := OptionalTime(c, "before")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), *got)

	c, _ = testContext(http.MethodGet, "/", "")
	got, ok = OptionalTime(c, "before")
	assert.True(t, ok)
	assert.Nil(t, got)

	c, w := testContext(http.MethodGet, "/?before=yesterday", "")
	_, ok = OptionalTime(c, "before")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequiredTime_Missing(t *testing.T) {
	c, w := testContext(http.MethodGet, "/", "")
	_, ok := RequiredTime(c, "from")
	assert.False(t, ok)
	assert.Contains(t, w.Body.String(), "from is required")
}

func TestInt(t *testing.T) {
	c, _ := testContext(http.MethodGet, "/?limit=25", "")
	n, ok := Int(c, "limit", 50)
	assert.True(t, ok)
	assert.Equal(t, 25, n)

	c, _ = testContext(http.MethodGet, "/", "")
	n, _ = Int(c, "limit", 50)
	assert.Equal(t, 50, n)

	c, w := testContext(http.MethodGet, "/?limit=-1", "")
	_, ok = Int(c, "limit", 50)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartRequest(t *testing.T, field string, payload []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "upload.bin")
	require.NoError(t, err)
	_, _ = part.Write(payload)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestFile(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "file", []byte("hello"))

	f, ok := File(c, 1024)
	require.True(t, ok)
	defer f.Close()
	data, _ := io.ReadAll(f)
	assert.Equal(t, "hello", string(data))
}

func TestFile_WrongField(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "image", []byte("hello"))

	_, ok := File(c, 1024)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFile_BodyOverCap(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "file", bytes.Repeat([]byte("x"), multipartOverhead+2048))

	_, ok := File(c, 1024)
	assert.False(t, ok)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
