package params

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/gin-gonic/gin"
)

// multipartOverhead leaves room for part headers and boundaries
const multipartOverhead = 64 << 10

// File opens the "file" part of a multipart/form-data upload. The body is
// capped just above maxBytes; the service enforces the exact limit.
func File(c *gin.Context, maxBytes int64) (multipart.File, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			apperr.Respond(c, apperr.TooLarge("file_too_large", maxBytes))
			return nil, false
		}
		apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, "a multipart file field is required"))
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, err.Error()))
		return nil, false
	}
	return f, true
}
