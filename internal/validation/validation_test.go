package validation

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"CUST0001", true},
		{"INT0042", true},
		{"cmp_3f2a9c0d1e4b5a6978877665544332211", true},
		{"loan-7781", true},
		{"", false},
		{"_leading", false},
		{"has space", false},
		{"semi;colon", false},
		{"../etc/passwd", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidID(tt.id), "id %q", tt.id)
	}
}

func TestIDParamMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/customers/:id", IDParamMiddleware("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/customers/CUST0001", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/customers/CUST%3B0001", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_id")
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Hi Asha,\nreply YES", SanitizeText("Hi Asha,\x00\nreply YES\x07", 100))
	assert.Equal(t, "₹₹₹", SanitizeText("₹₹₹₹₹", 3))
	assert.Equal(t, "", SanitizeText("", 10))
}

func TestCheck(t *testing.T) {
	errs := Check(
		Required("customerId", " "),
		ID("customerId", "bad id"),
		MaxChars("message", "₹₹", 2),
	)
	require.Len(t, errs, 2)
	assert.Equal(t, "customerId", errs[0].Field)
	assert.Equal(t, "customerId: is required", errs.Error())

	assert.Nil(t, Check(Required("customerId", "CUST0001"), ID("customerId", "CUST0001")))
}

func TestRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/interventions", func(c *gin.Context) {
		Respond(c, Check(Required("customerId", ""), Required("channel", "")))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/interventions", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error  string      `json:"error"`
		Fields FieldErrors `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_request", body.Error)
	require.Len(t, body.Fields, 2)
	assert.Equal(t, "channel", body.Fields[1].Field)
}

func TestRequestSizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestSizeMiddleware(8))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/echo", bytes.NewBufferString("tiny")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/echo", bytes.NewBufferString("far too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
