package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"bakery_manager/internal/middleware"
	"bakery_manager/internal/repository"
	"bakery_manager/internal/services"
	"bakery_manager/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func respondError(c *gin.Context, log *logrus.Logger, err error) {
	status := apperrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": apperrors.PublicMessage(err)})
}

func invalidRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
}

// bindOptionalJSON binds the body if there is one.
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// requirePrincipal returns the signed-in principal or answers 401.
func requirePrincipal(c *gin.Context) (*services.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}
	return p, true
}

func isConfirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}

func sortOrder(c *gin.Context) repository.SortOrder {
	if c.Query("sort") == "name" {
		return repository.SortName
	}
	return repository.SortRecent
}

func indexParam(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// idParam returns the :id path parameter. Ids are UUIDs, so anything else
// cannot name a row and answers 404 without reaching the store.
func idParam(c *gin.Context, entity string) (string, bool) {
	id := c.Param("id")
	if !isUUID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": entity + " not found"})
		return "", false
	}
	return id, true
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
