package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pageza/mealplanner/backend/internal/middleware"
	"github.com/pageza/mealplanner/backend/internal/service"
	"github.com/pageza/mealplanner/backend/internal/types"
)

// owner returns the resolved owner or answers 401 and returns false.
func owner(c *gin.Context) (types.Owner, bool) {
	o, ok := middleware.OwnerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identity not resolved"})
		return types.Owner{}, false
	}
	return o, true
}

// pathID parses the :id parameter or answers 400 and returns false.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// recordError maps a RecordService error to a response.
func recordError(c *gin.Context, kind string, err error) {
	switch {
	case errors.Is(err, service.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": kind + " not found"})
	case errors.Is(err, service.ErrForeignRecord):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidOwner):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identity not resolved"})
	default:
		slog.Default().ErrorContext(c.Request.Context(), "record operation failed",
			"module", "api",
			"kind", kind,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process " + kind})
	}
}
