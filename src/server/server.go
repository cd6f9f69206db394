// Package server exposes the support pipeline over HTTP: an HTML form for
// people and a JSON API for integrations.
package server

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Protocol-Lattice/go-support-desk/src/ocr"
	"github.com/Protocol-Lattice/go-support-desk/src/support"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type Options struct {
	Logger         *zap.Logger
	APIKeys        []string
	CORSOrigins    []string
	MaxUploadBytes int64
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
}

type Handler struct {
	svc      *support.Service
	logger   *zap.Logger
	maxBytes int64
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(svc *support.Service, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = ocr.DefaultMaxBytes
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	h := &Handler{svc: svc, logger: opts.Logger, maxBytes: opts.MaxUploadBytes}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(opts.Logger))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}
	r.SetHTMLTemplate(indexTemplate)
	// Multipart bodies beyond this spill to disk; the size check itself
	// happens per file.
	r.MaxMultipartMemory = opts.MaxUploadBytes + 1<<20

	r.GET("/", h.Index)
	r.POST("/", h.SubmitForm)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1", APIKeyAuth(opts.APIKeys, opts.Logger))
	{
		api.POST("/queries", h.CreateQuery)
		api.GET("/transcripts", h.ListTranscripts)
	}
	return r
}
