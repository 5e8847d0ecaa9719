package server

import (
	"indiverse/internal/models"

	"github.com/gofiber/fiber/v2"
)

type textRequest struct {
	Text string `json:"text"`
}

// AddComment handles POST /api/posts/:id/comments
// @Summary Add comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param request body object{text=string} true "Comment"
// @Success 200 {object} models.PostView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	var req textRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	post, err := s.feedService.AddComment(c.UserContext(), identity, c.Params("id"), req.Text)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:cid
// @Summary Delete comment
// @Description The post author or the comment author may delete it
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param cid path string true "Comment ID"
// @Success 200 {object} models.PostView
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{cid} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	post, err := s.feedService.DeleteComment(c.UserContext(), identity, c.Params("id"), c.Params("cid"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// AddReply handles POST /api/posts/:id/comments/:cid/replies
// @Summary Reply to comment
// @Description The comment is located by id, across posts if needed
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param cid path string true "Comment ID"
// @Param request body object{text=string} true "Reply"
// @Success 200 {object} models.PostView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{cid}/replies [post]
func (s *Server) AddReply(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	var req textRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	post, err := s.feedService.AddReply(c.UserContext(), identity, c.Params("id"), c.Params("cid"), req.Text)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}
