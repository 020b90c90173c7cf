// Package handlers implements the HTTP command surface.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
	"github.com/Adlikkk/gamehost-one/internal/process"
)

// respondError maps an error to its HTTP status and writes the JSON body.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindUnsupportedInput:
		status = http.StatusBadRequest
	case apperr.KindVerificationFailed:
		status = http.StatusUnprocessableEntity
	case apperr.KindExternalToolMissing:
		status = http.StatusFailedDependency
	case apperr.KindLockFailure:
		status = http.StatusLocked
	}

	if errors.Is(err, process.ErrNotRunning) {
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
