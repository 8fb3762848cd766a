package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fableink/fable_api/shared"
)

type MediaHandler struct {
	mediaSvc MediaServiceInterface
	postSvc  PostServiceInterface
}

func NewMediaHandler(mediaSvc MediaServiceInterface, postSvc PostServiceInterface) *MediaHandler {
	return &MediaHandler{
		mediaSvc: mediaSvc,
		postSvc:  postSvc,
	}
}

// @Summary Upload a post image
// @Description Upload a cover image for an own post (jpg, png or webp, max 5MB)
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param image formData file true "Image file"
// @Success 200 {object} shared.Response{data=dto.MediaUploadResponse}
// @Router /api/v1/posts/{id}/image [post]
func (h *MediaHandler) UploadPostImage(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)
	postID := c.Params("id")

	// Ownership check happens before the upload touches storage
	post, err := h.postSvc.GetPost(postID, userID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return shared.NewForbiddenError(nil, "You can only modify your own posts")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return shared.NewBadRequestError(err, "Image file is required")
	}

	resp, err := h.mediaSvc.UploadPostImage(postID, fileHeader)
	if err != nil {
		return err
	}

	if err := h.postSvc.SetImageURL(postID, userID, resp.URL); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Image uploaded", resp)
}
