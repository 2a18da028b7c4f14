package app

import (
	"net/http"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/gin-gonic/gin"
)

// UploadImage stores an image from the multipart "file" field
// POST /app/images
func (h *Handlers) UploadImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, ok := params.File(c, h.cfg.Storage.MaxUploadBytes)
		if !ok {
			return
		}
		defer file.Close()

		communityID, userID := caller(c)
		img, err := h.svc.Images.Upload(c.Request.Context(), communityID, userID, file)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, img)
	}
}
