package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tablebook-backend/services"
	"tablebook-backend/utils"
)

// respondServiceError maps service errors onto HTTP statuses. Anything that
// is not a validation or lookup failure is logged and reported as a 500.
func respondServiceError(c *gin.Context, log zerolog.Logger, err error) {
	var verr *services.ValidationError
	var nf *services.NotFoundError
	switch {
	case errors.As(err, &verr):
		utils.RespondWithFieldError(c, http.StatusBadRequest, verr.Field, verr.Error())
	case errors.As(err, &nf):
		utils.RespondWithError(c, http.StatusNotFound, nf.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		utils.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}
