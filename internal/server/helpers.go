package server

import (
	"strconv"

	"indiverse/internal/middleware"
	"indiverse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds parsed limit/offset query parameters. Limit 0 means no
// limit.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination extracts the optional limit and offset query parameters.
// Without a limit the whole sequence is returned. Values that are not
// non-negative integers are rejected; oversized limits are clamped.
func parsePagination(c *fiber.Ctx) (Pagination, error) {
	limit, err := queryNonNegative(c, "limit", 0)
	if err != nil {
		return Pagination{}, err
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset, err := queryNonNegative(c, "offset", 0)
	if err != nil {
		return Pagination{}, err
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}, nil
}

func queryNonNegative(c *fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, models.NewValidationError("Invalid " + key + " parameter")
	}
	return n, nil
}

// parseBody decodes the JSON request body into dest.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

// currentIdentity returns the caller resolved by AuthRequired.
func currentIdentity(c *fiber.Ctx) (*models.Identity, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return nil, models.NewMissingCredentialError()
	}
	return identity, nil
}
