// Package apperr defines the typed error returned by services and its mapping to
// HTTP responses. Every error carries a stable code; the message shown to the
// caller is looked up from the catalog in the caller's language.
package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
)

// Error is an application error with an HTTP status and a stable code
type Error struct {
	Status int
	Code   string
	// Params are substituted into the localized message
	Params []interface{}
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns a copy of e carrying cause
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func newError(status int, code string, params ...interface{}) *Error {
	return &Error{Status: status, Code: code, Params: params}
}

func BadRequest(code string, params ...interface{}) *Error {
	return newError(http.StatusBadRequest, code, params...)
}

func Unauthorized(code string) *Error {
	return newError(http.StatusUnauthorized, code)
}

func Forbidden(code string) *Error {
	return newError(http.StatusForbidden, code)
}

func NotFound(code string) *Error {
	return newError(http.StatusNotFound, code)
}

func Conflict(code string) *Error {
	return newError(http.StatusConflict, code)
}

func TooLarge(code string, params ...interface{}) *Error {
	return newError(http.StatusRequestEntityTooLarge, code, params...)
}

func TooManyRequests(code string) *Error {
	return newError(http.StatusTooManyRequests, code)
}

// Internal wraps an unexpected failure; its cause is logged, never shown
func Internal(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Err: cause}
}

// Common codes shared across services
const (
	CodeInternal         = "internal_error"
	CodeInvalidRequest   = "invalid_request"
	CodeUnauthenticated  = "unauthenticated"
	CodeNotAMember       = "not_a_member"
	CodeInsufficientRole = "insufficient_role"
	CodeNotFound         = "not_found"
	CodeUsernameTaken    = "username_taken"
	CodeAlreadyShared    = "already_shared"
	CodeSlugTaken        = "slug_taken"
	CodeOwnerConflict    = "owner_conflict"
	CodeDuplicate        = "duplicate"
)

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Is reports whether err carries an *Error with the given code
func Is(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

// uniqueViolations maps constraint names to the conflict raised when they fire
var uniqueViolations = map[string]string{
	"profiles_community_username_key":        CodeUsernameTaken,
	"profile_ownerships_pkey":                CodeAlreadyShared,
	"communities_slug_key":                   CodeSlugTaken,
	"users_email_key":                        "email_taken",
	"communities_custom_domain_key":          "domain_taken",
	"memberships_one_owner_idx":              CodeOwnerConflict,
	"community_applications_one_pending_idx": "application_pending",
}

// FromDB converts unique-constraint violations into conflicts and leaves any
// other error untouched
func FromDB(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}
	if code, ok := uniqueViolations[pqErr.Constraint]; ok {
		return Conflict(code).Wrap(err)
	}
	return Conflict(CodeDuplicate).Wrap(err)
}

// Respond writes err as a JSON error body. Errors that are not *Error become
// 500 internal_error and are logged.
func Respond(c *gin.Context, err error) {
	ae, ok := As(FromDB(err))
	if !ok {
		ae = Internal(err)
	}
	if ae.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
			"error", err)
	}
	c.AbortWithStatusJSON(ae.Status, gin.H{
		"error": gin.H{
			"code":    ae.Code,
			"message": Localize(ae.Code, c.GetHeader("Accept-Language"), ae.Params...),
		},
	})
}
