package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fableink/fable_api/dto"
	"github.com/fableink/fable_api/shared"
)

type UserHandler struct {
	userSvc UserServiceInterface
}

func NewUserHandler(userSvc UserServiceInterface) *UserHandler {
	return &UserHandler{
		userSvc: userSvc,
	}
}

// @Summary Get own profile
// @Description Profile of the authenticated user including post count
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} shared.Response{data=dto.UserProfileResponse}
// @Router /api/v1/me [get]
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	resp, err := h.userSvc.GetProfile(userID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Success", resp)
}

// @Summary Update own profile
// @Description Update username or email of the authenticated user
// @Tags user
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param updateRequest body dto.UpdateProfileRequest true "Profile fields to update"
// @Success 200 {object} shared.Response{data=dto.UserProfileResponse}
// @Router /api/v1/me [put]
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.userSvc.UpdateProfile(userID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Profile updated", resp)
}

// @Summary Check username availability
// @Tags user
// @Produce json
// @Param username path string true "Username to check"
// @Success 200 {object} shared.Response{data=dto.UsernameCheckResponse}
// @Router /api/v1/username/{username}/check [get]
func (h *UserHandler) CheckUsername(c *fiber.Ctx) error {
	username := c.Params("username")
	if username == "" {
		return shared.NewBadRequestError(nil, "Username is required")
	}

	resp, err := h.userSvc.CheckUsername(username)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Success", resp)
}
