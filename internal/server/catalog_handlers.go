package server

import (
	"indiverse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Catalog handlers return the stored source documents unchanged.

// GetHeritageSites handles GET /api/heritage
// @Summary List heritage sites
// @Tags catalog
// @Produce json
// @Success 200 {array} object
// @Router /heritage [get]
func (s *Server) GetHeritageSites(c *fiber.Ctx) error {
	sites, err := s.catalogService.ListHeritage(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(sites)
}

// GetHeritageSite handles GET /api/heritage/:id
// @Summary Get heritage site
// @Tags catalog
// @Produce json
// @Param id path string true "Site ID"
// @Success 200 {object} object
// @Failure 404 {object} models.ErrorResponse
// @Router /heritage/{id} [get]
func (s *Server) GetHeritageSite(c *fiber.Ctx) error {
	site, err := s.catalogService.GetHeritage(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(site)
}

// GetBlogs handles GET /api/blogs
// @Summary List blogs
// @Tags catalog
// @Produce json
// @Success 200 {array} object
// @Router /blogs [get]
func (s *Server) GetBlogs(c *fiber.Ctx) error {
	blogs, err := s.catalogService.ListBlogs(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(blogs)
}

// GetBlog handles GET /api/blogs/:id
// @Summary Get blog
// @Tags catalog
// @Produce json
// @Param id path string true "Blog ID"
// @Success 200 {object} object
// @Failure 404 {object} models.ErrorResponse
// @Router /blogs/{id} [get]
func (s *Server) GetBlog(c *fiber.Ctx) error {
	blog, err := s.catalogService.GetBlog(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(blog)
}

// GetState handles GET /api/states/:id
// @Summary Get state
// @Tags catalog
// @Produce json
// @Param id path string true "State ID"
// @Success 200 {object} object
// @Failure 404 {object} models.ErrorResponse
// @Router /states/{id} [get]
func (s *Server) GetState(c *fiber.Ctx) error {
	state, err := s.catalogService.GetState(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(state)
}

// GetTours handles GET /api/tours
// @Summary List tours
// @Tags catalog
// @Produce json
// @Success 200 {array} object
// @Router /tours [get]
func (s *Server) GetTours(c *fiber.Ctx) error {
	tours, err := s.catalogService.ListTours(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(tours)
}

// GetTour handles GET /api/tours/:id
// @Summary Get tour
// @Description The tour with its monuments resolved in tour order
// @Tags catalog
// @Produce json
// @Param id path string true "Tour ID"
// @Success 200 {object} object
// @Failure 404 {object} models.ErrorResponse
// @Router /tours/{id} [get]
func (s *Server) GetTour(c *fiber.Ctx) error {
	tour, err := s.catalogService.GetTour(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(tour)
}

// GetQuiz handles GET /api/quizzes/:monumentId
// @Summary Get quiz
// @Tags catalog
// @Produce json
// @Param monumentId path string true "Monument ID"
// @Success 200 {object} object
// @Failure 404 {object} models.ErrorResponse
// @Router /quizzes/{monumentId} [get]
func (s *Server) GetQuiz(c *fiber.Ctx) error {
	quiz, err := s.catalogService.GetQuiz(c.UserContext(), c.Params("monumentId"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(quiz)
}
