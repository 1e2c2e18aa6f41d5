// Package api is the HTTP control surface: capture state, device selection,
// formats, plugin commands, logs, metrics and a server-sent event stream.
package api

import (
	"crypto/subtle"
	"errors"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/graph"
	"github.com/smazurov/videofx/internal/hostui"
	"github.com/smazurov/videofx/internal/logging"
	"github.com/smazurov/videofx/internal/media"
)

// Capture is the part of the graph controller the API drives.
type Capture interface {
	Snapshot() graph.Snapshot
	Capabilities() ([]frame.Format, error)
	SelectDevice(dev media.Device) error
	ResetDevice() error
	SetPreviewActive(active bool) error
	ApplyFormat(f frame.Format) error
	Resize(g frame.Geometry) error
}

// DeviceLister enumerates capture devices. media.Engine satisfies it.
type DeviceLister interface {
	Devices() ([]media.Device, error)
}

// Commands lists and invokes plugin commands. *hostui.Menu satisfies it.
type Commands interface {
	Sites() []string
	Commands(site string) []hostui.CommandInfo
	Invoke(id string) (hostui.CommandInfo, error)
}

// RateSource reports the delivered frame rate.
type RateSource interface {
	FPS() float64
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string

	Capture  Capture
	Devices  DeviceLister
	Commands Commands
	// Rate is optional.
	Rate     RateSource
	EventBus *events.Bus
	// Snapshots enables GET /api/capture/snapshot when set.
	Snapshots SnapshotSource
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
}

// Server is the huma API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the API server on a Go 1.22 ServeMux.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("videofx API", "1.0.0")
	config.Info.Description = "Control surface for live capture preview with per-frame effects"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	server.registerRoutes()
	mux.Handle("GET /api/ws", server.websocketHandler())
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the listener and all connections, SSE streams included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.registerSystemRoutes()
	s.registerCaptureRoutes()
	s.registerCommandRoutes()
	s.registerLogRoutes()
	s.registerSSERoutes()
	s.registerSnapshotRoutes()
}

// basicAuthMiddleware enforces HTTP basic auth on operations that declare
// security. SSE clients that cannot set headers pass ?auth=base64(user:pass).
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	deny := func(ctx huma.Context, msg string, errs ...error) {
		ctx.SetHeader("WWW-Authenticate", `Basic realm="videofx"`)
		huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		var encoded string
		if header := ctx.Header("Authorization"); header != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(header, prefix) {
				deny(ctx, "Invalid authentication type")
				return
			}
			encoded = header[len(prefix):]
		} else {
			encoded = ctx.Query("auth")
		}
		if encoded == "" {
			deny(ctx, "Authentication required")
			return
		}

		if err := checkCredentials(encoded, username, password); err != nil {
			deny(ctx, err.Error())
			return
		}

		next(ctx)
	}
}

var (
	errBadCredentialFormat = errors.New("invalid credentials format")
	errBadCredentials      = errors.New("invalid credentials")
)

// checkCredentials validates base64(user:pass) in constant time.
func checkCredentials(encoded, username, password string) error {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return errBadCredentialFormat
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return errBadCredentialFormat
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
	if !userOK || !passOK {
		return errBadCredentials
	}
	return nil
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
