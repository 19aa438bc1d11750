package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/LineReport/internal/history"
)

// handleExport downloads the filtered history. format is xlsx (default) or
// csv.
func (s *Server) handleExport(c *gin.Context) {
	if err := s.checkCredentials(c.Request.Context()); err != nil {
		s.renderConfigError(c, err)
		return
	}
	var filter history.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.String(http.StatusBadRequest, "invalid filter")
		return
	}
	view, err := s.history.Load(c.Request.Context(), filter)
	if err != nil {
		c.String(http.StatusBadGateway, "No se pudo cargar el historial.")
		return
	}
	if view.Empty() {
		c.String(http.StatusNotFound, "No hay reportes registrados todavía.")
		return
	}

	var (
		data        []byte
		name, ctype string
	)
	switch strings.ToLower(c.DefaultQuery("format", "xlsx")) {
	case "xlsx":
		data, err = history.ExportXLSX(view.Rows)
		name, ctype = history.XLSXFileName, history.XLSXContentType
	case "csv":
		data, err = history.ExportCSV(view.Rows)
		name, ctype = history.CSVFileName, history.CSVContentType
	default:
		c.String(http.StatusBadRequest, "unsupported format")
		return
	}
	if err != nil {
		s.log.Error("history export failed", "error", err)
		c.String(http.StatusInternalServerError, "No se pudo generar el archivo.")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, ctype, data)
}
