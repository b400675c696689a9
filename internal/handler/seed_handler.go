package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/dossier-messaging-api/internal/seed"
	"github.com/noah-isme/dossier-messaging-api/internal/utils"
)

// SeedHandler exposes tooling endpoints for resetting demo data.
type SeedHandler struct {
	seeder seed.Seeder
	logger zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(seeder seed.Seeder, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		seeder: seeder,
		logger: logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/seed", h.reseed)
}

func (h *SeedHandler) reseed(c *fiber.Ctx) error {
	result, err := h.seeder.Reseed(requestContext(c), c.Get("X-Seed-Token"))
	if err != nil {
		return h.seedError(c, err)
	}
	return utils.SendSuccess(c, "messaging data reseeded", result)
}

func (h *SeedHandler) seedError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, seed.ErrSeedDisabled):
		return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
	case errors.Is(err, seed.ErrSeedUnauthorized):
		return utils.SendError(c, fiber.StatusForbidden, "invalid token")
	default:
		h.logger.Error().Err(err).Msg("seed operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "seed operation failed")
	}
}
