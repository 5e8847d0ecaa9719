package server

import (
	"indiverse/internal/models"
	"indiverse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateMessage handles POST /api/messages
// @Summary Submit contact message
// @Tags messages
// @Accept json
// @Produce json
// @Param request body object{name=string,email=string,message=string} true "Message"
// @Success 201 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /messages [post]
func (s *Server) CreateMessage(c *fiber.Ctx) error {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	err := s.messageService.Submit(c.UserContext(), service.MessageInput{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Message received successfully"})
}

// GetRecentMessages handles GET /api/messages/recent
// @Summary Recent messages
// @Description The five newest submissions, name and time only
// @Tags messages
// @Produce json
// @Success 200 {array} models.MessageSummary
// @Router /messages/recent [get]
func (s *Server) GetRecentMessages(c *fiber.Ctx) error {
	msgs, err := s.messageService.Recent(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(msgs)
}
