package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/juliensalinas/userhub/internal/account"
)

// UploadHandler stores the raw data file of a user. There is exactly one
// slot per user: a second upload silently replaces the first. No content
// validation or size limit happens at this layer.
type UploadHandler struct {
	userFoldersPath string
	logger          zerolog.Logger
}

// NewUploadHandler creates the upload endpoint handler.
func NewUploadHandler(userFoldersPath string, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		userFoldersPath: userFoldersPath,
		logger:          logger,
	}
}

// RegisterRoutes mounts the build namespace behind the API guards.
func (h *UploadHandler) RegisterRoutes(app *fiber.App, guard *Guard) {
	build := app.Group("/api/build", guard.TokenRequired(), guard.PremiumRequired())
	build.Post("/1_upload", h.Upload)
}

// Upload writes the multipart file to the user's fixed data slot.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	user := UserFromContext(c)
	h.logger.Debug().Stringer("user", user).Msg("api upload")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Data file is missing.",
		})
	}

	dest := account.UserDataFile(h.userFoldersPath, user.Email)
	if err := c.SaveFile(fileHeader, dest); err != nil {
		h.logger.Error().Err(err).Stringer("user", user).Msg("failed to save uploaded file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not save the uploaded file.",
		})
	}

	return c.JSON(fiber.Map{
		"Status": "Your file===" + fileHeader.Filename + "===was Successfully Uploaded",
	})
}
