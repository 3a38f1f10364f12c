package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/sitemgmt/pkg/directory"
	"github.com/platinummonkey/sitemgmt/pkg/httputil"
	"github.com/platinummonkey/sitemgmt/pkg/middleware"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
	"github.com/platinummonkey/sitemgmt/pkg/session"
	"github.com/platinummonkey/sitemgmt/pkg/sso"
)

// Directory is the admin roster the handlers operate on
type Directory interface {
	Lookup(ctx context.Context, email string) (*directory.Admin, error)
	Get(ctx context.Context, id int64) (*directory.Admin, error)
	List(ctx context.Context) ([]*directory.Admin, error)
	CreateOrReactivate(ctx context.Context, email string) (directory.Result, *directory.Admin, error)
	Deactivate(ctx context.Context, email string) (directory.Result, error)
	UpdateEmail(ctx context.Context, oldEmail, newEmail string) (directory.Result, error)
}

// TokenService mints and verifies session tokens
type TokenService interface {
	Issue(id session.Identity) (string, time.Time, error)
	Verify(token string) (*session.Claims, error)
	TTL() time.Duration
}

// Server represents the admin site's HTTP API
type Server struct {
	router    *mux.Router
	directory Directory
	provider  sso.IdentityProvider
	tokens    TokenService
	gate      *middleware.AuthGate

	logger          *observability.Logger
	metrics         *observability.Metrics
	providerTimeout time.Duration
	secureCookies   bool
	loginLimiter    func(http.Handler) http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the base request logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithProviderTimeout bounds the callback's exchange with the identity provider
func WithProviderTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.providerTimeout = timeout
		}
	}
}

// WithSecureCookies marks session and state cookies Secure
func WithSecureCookies(secure bool) Option {
	return func(s *Server) {
		s.secureCookies = secure
	}
}

// WithLoginLimiter wraps /login and /callback
func WithLoginLimiter(limiter func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.loginLimiter = limiter
	}
}

// NewServer creates the API server
func NewServer(dir Directory, provider sso.IdentityProvider, tokens TokenService, opts ...Option) *Server {
	s := &Server{
		router:          mux.NewRouter(),
		directory:       dir,
		provider:        provider,
		tokens:          tokens,
		logger:          observability.NewNopLogger(),
		providerTimeout: sso.DefaultHTTPTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.gate = middleware.NewAuthGate(tokens,
		middleware.WithGateMetrics(s.metrics),
		middleware.WithSecureCookie(s.secureCookies),
		middleware.WithFailureRenderer(renderError),
	)

	s.setupRoutes()
	return s
}

// setupRoutes configures all the routes
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
	s.router.Handle("/login", s.limitLogin(http.HandlerFunc(s.login))).Methods(http.MethodGet)
	s.router.Handle("/callback", s.limitLogin(http.HandlerFunc(s.callback))).Methods(http.MethodGet)
	s.router.HandleFunc("/logout", s.logout).Methods(http.MethodGet)

	// Everything below requires a session
	protected := s.router.NewRoute().Subrouter()
	protected.Use(s.gate.Handler)

	protected.HandleFunc("/protected_area", s.dashboard).Methods(http.MethodGet)

	protected.HandleFunc("/add_admin", s.addAdminForm).Methods(http.MethodGet)
	protected.HandleFunc("/add_admin", s.addAdmin).Methods(http.MethodPost)
	protected.HandleFunc("/delete_admin", s.deleteAdminForm).Methods(http.MethodGet)
	protected.HandleFunc("/delete_admin", s.deleteAdmin).Methods(http.MethodPost)
	protected.HandleFunc("/update_admin", s.updateAdminForm).Methods(http.MethodGet)
	protected.HandleFunc("/update_admin", s.updateAdmin).Methods(http.MethodPost)

	protected.HandleFunc("/admins", s.listAdmins).Methods(http.MethodGet)
	protected.HandleFunc("/admins/{id:[0-9]+}", s.getAdmin).Methods(http.MethodGet)
}

func (s *Server) limitLogin(h http.Handler) http.Handler {
	if s.loginLimiter == nil {
		return h
	}
	return s.loginLimiter(h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped with request ids, access logging,
// panic recovery and tracing
func (s *Server) Handler() http.Handler {
	h := httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
	)(s.router)
	return otelhttp.NewHandler(h, "sitemgmt")
}

// renderError is the error view shown for authentication failures
func renderError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	httputil.WriteErrorMessage(w, status, message)
}
