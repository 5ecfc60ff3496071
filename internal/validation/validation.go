// Package validation guards request input: body size, identifier shape and
// free text typed by operators.
package validation

import (
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20

// MaxMessageLength caps operator-edited message text, in characters.
const MaxMessageLength = 2000

// identifiers: CUST0001, INT0001, cmp_<hex>, or whatever an external roster
// uses, within reason
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,63}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidID reports whether s is a well-formed customer, intervention or
// composition identifier.
func IsValidID(s string) bool {
	return idRegex.MatchString(s)
}

// IDParamMiddleware rejects requests whose :param is not a valid identifier
// before any store lookup happens.
func IDParamMiddleware(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param(param); id != "" && !IsValidID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_id",
				"message": param + " must be 1-64 letters, digits, '-' or '_'",
			})
			return
		}
		c.Next()
	}
}

// SanitizeText strips NUL and other control characters except newlines and
// tabs, and truncates to maxLen characters. It never splits a character.
func SanitizeText(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range s {
		if r == utf8.RuneError || (r < 0x20 && r != '\n' && r != '\t') || r == 0x7f {
			continue
		}
		if n == maxLen {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors collects every invalid field of a request.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Respond aborts with 400 invalid_request listing every failed field.
func Respond(c *gin.Context, errs FieldErrors) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": errs.Error(),
		"fields":  errs,
	})
}

// Check runs rules and returns the failures, or nil.
func Check(rules ...func() *FieldError) FieldErrors {
	var errs FieldErrors
	for _, rule := range rules {
		if err := rule(); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// Required fails on a blank value.
func Required(field, value string) func() *FieldError {
	return func() *FieldError {
		if strings.TrimSpace(value) == "" {
			return &FieldError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ID fails on a malformed identifier. Empty values pass; pair with Required.
func ID(field, value string) func() *FieldError {
	return func() *FieldError {
		if value != "" && !IsValidID(value) {
			return &FieldError{Field: field, Message: "is not a valid identifier"}
		}
		return nil
	}
}

// MaxChars fails when value has more than max characters.
func MaxChars(field, value string, max int) func() *FieldError {
	return func() *FieldError {
		if utf8.RuneCountInString(value) > max {
			return &FieldError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}
