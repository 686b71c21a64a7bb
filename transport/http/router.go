package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/layer-3/invoicegate/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures the router
type Options struct {
	Logger         *zap.Logger
	Gatherer       prometheus.Gatherer // nil disables /metrics
	AllowedOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, walletService *service.WalletService, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	authHandlers := NewAuthHandlers(authService)
	walletHandlers := NewWalletHandlers(walletService)

	// Wallet challenge/response
	router.POST("/challenge", authHandlers.Challenge)
	router.POST("/verify", authHandlers.Verify)

	// Session lifecycle
	auth := router.Group("/auth")
	{
		auth.POST("/refresh", authHandlers.Refresh)
		auth.POST("/logout", authHandlers.Logout)
		auth.GET("/session", AuthMiddleware(authService), authHandlers.Session)
	}

	// Wallet linking, scoped to the bearer's account
	protected := router.Group("/")
	protected.Use(AuthMiddleware(authService))
	{
		protected.POST("/link", walletHandlers.Link)
		protected.GET("/wallets", walletHandlers.List)
		protected.DELETE("/wallets/:id", walletHandlers.Remove)
		protected.POST("/wallets/:id/primary", walletHandlers.SetPrimary)
	}

	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

// NewHandler wraps the router with the cross-origin policy of the wallet endpoints
func NewHandler(router http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})(router)
}
