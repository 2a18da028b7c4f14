// Package params binds request bodies and query parameters for the /app and
// /console handlers. Every helper writes the 400 response itself and reports
// false so handlers can simply return.
package params

import (
	"errors"
	"strconv"
	"time"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON decodes and validates the JSON body into dst
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, describe(err)))
		return false
	}
	return true
}

// describe names the first failing field instead of echoing validator internals
func describe(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Field() + " failed " + fe.Tag()
	}
	return err.Error()
}

// OptionalTime parses an RFC 3339 query parameter; absent yields nil
func OptionalTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, key+" must be an RFC 3339 timestamp"))
		return nil, false
	}
	t = t.UTC()
	return &t, true
}

// RequiredTime is OptionalTime that rejects an absent value
func RequiredTime(c *gin.Context, key string) (time.Time, bool) {
	t, ok := OptionalTime(c, key)
	if !ok {
		return time.Time{}, false
	}
	if t == nil {
		apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, key+" is required"))
		return time.Time{}, false
	}
	return *t, true
}

// Int parses a non-negative integer query parameter, defaulting when absent
func Int(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, key+" must be a non-negative integer"))
		return 0, false
	}
	return n, true
}

// Bool reads a query flag; "true" and "1" are true
func Bool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

// OptionalString returns a pointer to a non-empty query parameter
func OptionalString(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}
