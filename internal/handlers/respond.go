package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"airdrop-backend/internal/apperr"
)

// respondError maps a service error to its HTTP status. Unclassified
// errors are logged with context server-side and surfaced opaquely.
func respondError(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Kind == apperr.Internal {
			log.Printf("Internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		}
		c.JSON(apperr.HTTPStatus(ae.Kind), gin.H{
			"error": ae.Message,
			"code":  ae.Code,
		})
		return
	}

	log.Printf("Unhandled error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
