package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fableink/fable_api/dto"
	"github.com/fableink/fable_api/shared"
)

type PostHandler struct {
	postSvc PostServiceInterface
	viewSvc ViewServiceInterface
}

func NewPostHandler(postSvc PostServiceInterface, viewSvc ViewServiceInterface) *PostHandler {
	return &PostHandler{
		postSvc: postSvc,
		viewSvc: viewSvc,
	}
}

// @Summary List posts
// @Description Paginated list of published posts with search and filtering
// @Tags posts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Param search query string false "Search in title and content"
// @Param tag query string false "Filter by tag"
// @Param author query string false "Filter by author ID"
// @Param sort query string false "Sort order" Enums(newest, oldest, views)
// @Success 200 {object} shared.Response{data=dto.PostListResponse}
// @Router /api/v1/posts [get]
func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	var req dto.ListPostsRequest
	if err := c.QueryParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid query parameters")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	viewerID, _ := c.Locals(shared.UserID).(string)

	resp, err := h.postSvc.ListPosts(req, viewerID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Success", resp)
}

// @Summary List own posts
// @Description Paginated list of the authenticated user's posts, drafts included
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} shared.Response{data=dto.PostListResponse}
// @Router /api/v1/me/posts [get]
func (h *PostHandler) MyPosts(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	var req dto.ListPostsRequest
	if err := c.QueryParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid query parameters")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	req.Author = userID

	resp, err := h.postSvc.ListPosts(req, userID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Success", resp)
}

// @Summary Get a post
// @Description Post detail. Each request runs the view pipeline; the result
// @Description is reported in the response meta.
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} shared.Response{data=dto.PostDetailResponse}
// @Router /api/v1/posts/{id} [get]
func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	postID := c.Params("id")
	viewerID, _ := c.Locals(shared.UserID).(string)

	post, err := h.postSvc.GetPost(postID, viewerID)
	if err != nil {
		return err
	}

	meta := h.viewSvc.Process(post, c.IP(), viewerID, c.Get("User-Agent"), c.Get("Accept-Language"))

	resp := dto.PostDetailResponse{
		Post: *h.postSvc.ToResponse(post),
		Meta: meta,
	}

	return shared.ResponseJSON(c, http.StatusOK, "Success", resp)
}

// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param createRequest body dto.CreatePostRequest true "Post contents"
// @Success 201 {object} shared.Response{data=dto.PostResponse}
// @Router /api/v1/posts [post]
func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	var req dto.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.postSvc.CreatePost(userID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusCreated, "Post created", resp)
}

// @Summary Update a post
// @Description Update an own post. Changing the title regenerates the slug.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param updateRequest body dto.UpdatePostRequest true "Fields to update"
// @Success 200 {object} shared.Response{data=dto.PostResponse}
// @Router /api/v1/posts/{id} [put]
func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)
	postID := c.Params("id")

	var req dto.UpdatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.postSvc.UpdatePost(postID, userID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Post updated", resp)
}

// @Summary Delete a post
// @Description Delete an own post. Admins can delete any post.
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} shared.Response
// @Router /api/v1/posts/{id} [delete]
func (h *PostHandler) DeletePost(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)
	userRole, _ := c.Locals(shared.UserRole).(string)
	postID := c.Params("id")

	if err := h.postSvc.DeletePost(postID, userID, userRole); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Post deleted", nil)
}
