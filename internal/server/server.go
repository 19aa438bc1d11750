// Package server renders the incident page and serves the submit, export and
// JSON endpoints. Every request recomputes its whole view; nothing is kept
// between requests except what the page posts back.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/LineReport/internal/config"
	"github.com/dharsanguruparan/LineReport/internal/credentials"
	"github.com/dharsanguruparan/LineReport/internal/history"
	"github.com/dharsanguruparan/LineReport/internal/logger"
	"github.com/dharsanguruparan/LineReport/internal/model"
	"github.com/dharsanguruparan/LineReport/internal/report"
	"github.com/dharsanguruparan/LineReport/internal/signing"
)

// multipartMemory bounds how much of a submit is buffered in memory before
// multipart spills file parts to disk.
const multipartMemory = 32 << 20

//go:embed templates/*.html
var templatesFS embed.FS

// PhotoSource serves photos kept in process. Only the memory backend has one.
type PhotoSource interface {
	Get(id string) (*model.Photo, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Reports *report.Service
	History *history.Viewer
	Signer  *signing.Signer
	// Credentials is checked before any page is rendered. Nil when no
	// backend needs Google credentials.
	Credentials credentials.Source
	Photos      PhotoSource
}

// Server hosts the HTTP handlers.
type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	reports *report.Service
	history *history.Viewer
	signer  *signing.Signer
	creds   credentials.Source
	photos  PhotoSource
	engine  *gin.Engine
}

// New creates a configured server with its routes registered.
func New(cfg *config.Config, log *logger.Logger, deps Deps) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	tmpl, err := template.New("").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		log:     log.With("component", "server"),
		reports: deps.Reports,
		history: deps.History,
		signer:  deps.Signer,
		creds:   deps.Credentials,
		photos:  deps.Photos,
	}
	s.engine = s.routes(tmpl)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve runs the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	s.log.Info("listening", "address", s.cfg.Address)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes(tmpl *template.Template) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(s.log))
	r.SetHTMLTemplate(tmpl)
	r.MaxMultipartMemory = multipartMemory

	r.GET("/healthz", s.handleHealth)
	r.GET("/", s.handlePage)
	r.POST("/reports", s.handleSubmit)
	r.GET("/history/export", s.handleExport)
	r.GET("/api/reports", s.handleAPIReports)
	r.GET("/photos/:id", s.handlePhoto)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// checkCredentials returns the cached configuration error, if any.
func (s *Server) checkCredentials(ctx context.Context) error {
	if s.creds == nil {
		return nil
	}
	_, err := s.creds.Credentials(ctx)
	return err
}
