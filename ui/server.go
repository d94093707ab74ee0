package ui

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"datalens/adapters/excel"
	"datalens/app"
	"datalens/internal"
	"datalens/ports"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

const sessionCookie = "datalens_session"

// Config holds UI server settings.
type Config struct {
	Port    string
	GinMode string
}

// Server is the view layer: it renders the explorer state and forwards
// user actions to the session's controllers. It holds no state of its
// own beyond the per-session figure cache.
type Server struct {
	router    *gin.Engine
	sessions  *app.Registry
	figures   *FigureCache
	exporter  *excel.Exporter
	actions   ports.ActionLog
	log       *internal.Logger
	templates *template.Template
	port      string
}

// NewServer wires the routes and parses the embedded templates.
func NewServer(cfg Config, sessions *app.Registry, figures *FigureCache, actions ports.ActionLog, log *internal.Logger) (*Server, error) {
	if log == nil {
		log = internal.DefaultLogger
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	templates, err := template.New("").ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		router:    gin.Default(),
		sessions:  sessions,
		figures:   figures,
		exporter:  excel.NewExporter(),
		actions:   actions,
		log:       log,
		templates: templates,
		port:      cfg.Port,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.sessionMiddleware())

	s.router.GET("/", s.handleIndex)

	api := s.router.Group("/api")
	api.POST("/upload", s.handleUpload)
	api.POST("/remove-na", s.handleRemoveNA)
	api.POST("/filter", s.handleFilter)
	api.POST("/filter/column", s.handleSelectColumn)
	api.POST("/plot", s.handlePlot)
	api.POST("/plot/reset", s.handlePlotReset)
	api.GET("/plot", s.handleFigure)
	api.GET("/state", s.handleState)
	api.GET("/export", s.handleExport)
	api.GET("/actions", s.handleActions)
}

// sessionMiddleware issues the session cookie and resolves the
// session's explorer for downstream handlers.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var id uuid.UUID
		if raw, err := c.Cookie(sessionCookie); err == nil {
			if parsed, perr := uuid.Parse(raw); perr == nil {
				id = parsed
			}
		}
		if id == uuid.Nil {
			id = uuid.New()
			c.SetCookie(sessionCookie, id.String(), 0, "/", "", false, true)
		}
		c.Set("explorer", s.sessions.GetOrCreate(id))
		c.Next()
	}
}

func (s *Server) explorer(c *gin.Context) *app.Explorer {
	return c.MustGet("explorer").(*app.Explorer)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the HTTP server until it fails.
func (s *Server) Start() error {
	addr := ":" + s.port
	s.log.Info("[UI] serving on %s", addr)
	return s.router.Run(addr)
}
