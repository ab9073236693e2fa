package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/Joelisking/projectx-client/internal/config"
	"github.com/rs/zerolog/log"
)

// Server stands in for the frontend dev rewrite: /api/v1/* is forwarded to the
// backend so browser code can use relative URLs without CORS trouble.
type Server struct {
	env     string
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	backend *url.URL
	proxy   *httputil.ReverseProxy
}

func New(cfg config.Config) (*Server, error) {
	backend, err := url.Parse(cfg.GetBackendURL())
	if err != nil || backend.Scheme == "" || backend.Host == "" {
		return nil, fmt.Errorf("[proxy New] invalid backend url %q", cfg.GetBackendURL())
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		backend: backend,
	}
	s.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(backend)
			pr.SetXForwarded()
		},
		ErrorHandler: s.proxyError,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) initRoutes() {
	prefix := strings.TrimRight(s.config.GetAPIPrefix(), "/") + "/"
	s.RegisterRouteFunc(prefix, ChainMiddleware(s.proxy.ServeHTTP, s.APIMiddleware()...))
	s.RegisterRouteFunc("GET /healthz", s.healthHandler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	log.Err(err).Str("backend", s.backend.String()).Str("path", r.URL.Path).Msg("Backend unreachable")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte(`{"detail":"backend unavailable"}`))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("*", parts[0])
		}
	}
	log.Info().Str("backend", s.backend.String()).Msg("Proxying API requests")
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func logRequest(method, path string, status int) {
	log.Info().Msgf("[%-19s] %s%d%s %s", colouredMethod(method), statusColor(status), status, ResetColor, path)
}
