package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/LineReport/internal/history"
	"github.com/dharsanguruparan/LineReport/internal/report"
	"github.com/dharsanguruparan/LineReport/internal/signing"
)

// Operator-facing messages.
const (
	msgUnreadableForm = "No se pudo leer el formulario enviado."
	msgInvalidToken   = "El formulario no es válido. Por favor, envíelo de nuevo."
	msgExpiredToken   = "El formulario expiró. Por favor, envíelo de nuevo."
	msgUsedToken      = "Este formulario ya fue enviado."
)

type pageData struct {
	ConfigError string

	Form     report.Form
	Failure  string
	Token    signing.Token
	Machines []string
	MaxPhoto int64

	History      *history.View
	HistoryError string
	ExportXLSX   string
	ExportCSV    string
}

func (s *Server) handlePage(c *gin.Context) {
	s.render(c, http.StatusOK, s.reports.NewForm())
}

func (s *Server) handleSubmit(c *gin.Context) {
	if err := s.checkCredentials(c.Request.Context()); err != nil {
		s.renderConfigError(c, err)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxPhotoBytes+1<<20)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			s.render(c, statusForBodyError(err), s.reports.Reject(s.reports.NewForm(), msgUnreadableForm))
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			s.render(c, http.StatusBadRequest, s.reports.Reject(s.reports.NewForm(), msgUnreadableForm))
			return
		}
	}

	form := s.reports.NewForm().Collect(report.Fields{
		Operator:    c.PostForm("operator"),
		Machine:     c.PostForm("machine"),
		Product:     c.PostForm("product"),
		Order:       c.PostForm("order"),
		Description: c.PostForm("description"),
	})
	token := signing.Token{
		FormID:    c.PostForm("form_id"),
		Expires:   c.PostForm("expires"),
		Signature: c.PostForm("signature"),
	}
	if err := s.signer.Redeem(token); err != nil {
		msg := msgInvalidToken
		switch {
		case errors.Is(err, signing.ErrExpiredToken):
			msg = msgExpiredToken
		case errors.Is(err, signing.ErrUsedToken):
			msg = msgUsedToken
		}
		s.render(c, http.StatusBadRequest, s.reports.Reject(form, msg))
		return
	}

	photo, err := s.readPhoto(c)
	if err != nil {
		s.log.Debug("photo rejected", "error", err)
		s.render(c, http.StatusBadRequest, s.reports.Reject(form, photoMessage(err)))
		return
	}

	result := s.reports.Submit(c.Request.Context(), form, photo)
	switch result.State {
	case report.StateSucceeded:
		s.render(c, http.StatusOK, result.Reset(s.reports.Defaults()))
	case report.StateFailed:
		s.render(c, http.StatusBadGateway, result)
	default:
		s.render(c, http.StatusBadRequest, result)
	}
}

// render writes the full page: the form in its current state plus a freshly
// loaded history panel. A configuration error replaces the whole page.
func (s *Server) render(c *gin.Context, status int, form report.Form) {
	ctx := c.Request.Context()
	if err := s.checkCredentials(ctx); err != nil {
		s.renderConfigError(c, err)
		return
	}
	data := pageData{
		Form:     form,
		Token:    s.signer.Issue(),
		Machines: s.reports.Machines(),
		MaxPhoto: s.cfg.MaxPhotoBytes >> 20,
	}
	if form.State == report.StateFailed && form.Err != nil {
		data.Failure = form.Err.Error()
	}

	filter := history.Filter{Operator: c.Query("operator"), Machine: c.Query("machine")}
	view, err := s.history.Load(ctx, filter)
	if err != nil {
		data.HistoryError = err.Error()
	} else {
		data.History = view
		data.ExportXLSX = exportURL(filter, "xlsx")
		data.ExportCSV = exportURL(filter, "csv")
	}
	c.HTML(status, "page.html", data)
}

func (s *Server) renderConfigError(c *gin.Context, err error) {
	s.log.Error("configuration error", "error", err)
	c.HTML(http.StatusInternalServerError, "page.html", pageData{ConfigError: err.Error()})
}

func exportURL(f history.Filter, format string) string {
	q := url.Values{}
	if f.Operator != "" {
		q.Set("operator", f.Operator)
	}
	if f.Machine != "" {
		q.Set("machine", f.Machine)
	}
	q.Set("format", format)
	return "/history/export?" + q.Encode()
}

func statusForBodyError(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
