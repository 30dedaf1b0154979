package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nvrengine/engine/internal/ncerrors"
)

// respondFromError maps an ncerrors-classified error onto a status code
// and JSON body. Errors the taxonomy doesn't recognize are treated as
// internal errors rather than leaking implementation detail to the client.
func respondFromError(c *fiber.Ctx, err error) error {
	switch {
	case ncerrors.Is(err, ncerrors.InvalidArgument):
		return RespondBadRequest(c, err.Error())
	case ncerrors.Is(err, ncerrors.NotFound), ncerrors.Is(err, ncerrors.InvalidHandle):
		return RespondNotFound(c, err.Error())
	case ncerrors.Is(err, ncerrors.Conflict):
		return RespondConflict(c, err.Error())
	case ncerrors.Is(err, ncerrors.UnknownFeature):
		return RespondBadRequest(c, err.Error())
	case ncerrors.Is(err, ncerrors.Unavailable):
		return RespondError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", err.Error())
	default:
		return RespondInternalError(c, err.Error())
	}
}
