package server

import (
	"indiverse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Community feed, newest first
// @Tags posts
// @Produce json
// @Param limit query int false "Page size (max 100); omitted returns the whole feed"
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.PostView
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := parsePagination(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	posts, err := s.feedService.ListPosts(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Get post
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} models.PostView
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.feedService.GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{url=string,description=string} true "Post"
// @Success 201 {object} models.PostView
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	var req struct {
		URL         string `json:"url"`
		Description string `json:"description"`
	}
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	post, err := s.feedService.CreatePost(c.UserContext(), identity, req.URL, req.Description)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete post
// @Description Only the author may delete a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if err := s.feedService.DeletePost(c.UserContext(), identity, c.Params("id")); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// ToggleLike handles PATCH /api/posts/:id/like
// @Summary Toggle like
// @Description Adds the caller's like, or removes it if already present
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} models.PostView
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /posts/{id}/like [patch]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	post, err := s.feedService.ToggleLike(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}
