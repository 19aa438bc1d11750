package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/LineReport/internal/history"
	"github.com/dharsanguruparan/LineReport/internal/storage"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": apiError{Message: message, Code: code}})
}

// handleAPIReports returns the filtered history view as JSON.
func (s *Server) handleAPIReports(c *gin.Context) {
	if err := s.checkCredentials(c.Request.Context()); err != nil {
		s.log.Error("configuration error", "error", err)
		respondError(c, http.StatusInternalServerError, "configuration", err.Error())
		return
	}
	var filter history.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	view, err := s.history.Load(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusBadGateway, "fetch_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, view)
}

// handlePhoto serves photos held by the in-memory backend.
func (s *Server) handlePhoto(c *gin.Context) {
	if s.photos == nil {
		respondError(c, http.StatusNotFound, "not_found", "photo not found")
		return
	}
	photo, err := s.photos.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "photo not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	c.Data(http.StatusOK, photo.ContentType, photo.Data)
}
