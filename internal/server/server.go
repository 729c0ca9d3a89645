package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	authlocal "github.com/smallbiznis/atelier/internal/auth/local"
	boutiquedomain "github.com/smallbiznis/atelier/internal/boutique/domain"
	catalogdomain "github.com/smallbiznis/atelier/internal/catalog/domain"
	"github.com/smallbiznis/atelier/internal/config"
	inboxdomain "github.com/smallbiznis/atelier/internal/inbox/domain"
	"github.com/smallbiznis/atelier/internal/observability"
	obslogger "github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	obstracing "github.com/smallbiznis/atelier/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	outboxdomain "github.com/smallbiznis/atelier/internal/outbox/domain"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	"github.com/smallbiznis/atelier/internal/ratelimit"
	settingsdomain "github.com/smallbiznis/atelier/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

const (
	publicDir = "./public"

	// rate limited endpoints
	limitCheckout      = "checkout"
	limitContact       = "contact"
	limitPaymentIntent = "payment_intent"
	limitLogin         = "login"
)

type EngineConfig struct {
	Debug          bool
	AllowedOrigins []string
	UploadsPath    string
	UploadsDir     string
}

func NewEngine(cfg EngineConfig, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:    cfg.Debug,
		Classify: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{"Origin", "Content-Type", obslogger.RequestIDHeader},
			ExposeHeaders:    []string{obslogger.RequestIDHeader, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.UploadsPath != "" && cfg.UploadsDir != "" {
		r.Static(cfg.UploadsPath, cfg.UploadsDir)
	}

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engineCfg := EngineConfig{
		Debug:          obsCfg.Debug(),
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "local" {
		engineCfg.UploadsPath = cfg.Storage.PublicPath
		engineCfg.UploadsDir = cfg.Storage.LocalDir
	}
	return NewEngine(engineCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if strings.TrimSpace(addr) == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	auth        *authlocal.Handler
	catalogSvc  catalogdomain.Service
	orderSvc    orderdomain.Service
	settingsSvc settingsdomain.Service
	inboxSvc    inboxdomain.Service
	outboxSvc   outboxdomain.Service
	boutiqueSvc boutiquedomain.Service
	paymentSvc  paymentdomain.Service
	limiter     *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Auth        *authlocal.Handler
	CatalogSvc  catalogdomain.Service
	OrderSvc    orderdomain.Service
	SettingsSvc settingsdomain.Service
	InboxSvc    inboxdomain.Service
	OutboxSvc   outboxdomain.Service
	BoutiqueSvc boutiquedomain.Service
	PaymentSvc  paymentdomain.Service
	Limiter     *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		auth:        p.Auth,
		catalogSvc:  p.CatalogSvc,
		orderSvc:    p.OrderSvc,
		settingsSvc: p.SettingsSvc,
		inboxSvc:    p.InboxSvc,
		outboxSvc:   p.OutboxSvc,
		boutiqueSvc: p.BoutiqueSvc,
		paymentSvc:  p.PaymentSvc,
		limiter:     p.Limiter,
	}

	authlocal.RegisterRoutes(svc.engine, svc.auth, svc.RateLimit(limitLogin))
	svc.registerPublicRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	api := s.engine.Group("/api")

	// -------- Catalog --------
	api.GET("/products", s.ListProducts)
	api.GET("/products/meta/categories", s.ListProductCategories)
	api.GET("/products/featured/home", s.ListFeaturedProducts)
	api.GET("/products/:id", s.GetProduct)

	// -------- Orders & payments --------
	api.POST("/orders", s.RateLimit(limitCheckout), s.Checkout)
	api.GET("/orders/:id", s.GetOrder)
	api.POST("/orders/create-payment-intent", s.RateLimit(limitPaymentIntent), s.CreatePaymentIntent)
	api.GET("/config/stripe-public-key", s.StripePublicKey)
	api.POST("/webhooks/stripe", s.StripeWebhook)

	// -------- Shipping --------
	api.GET("/shipping/calculate", s.CalculateShipping)
	api.POST("/shipping/quote", s.QuoteShipping)

	// -------- Contact --------
	api.POST("/contact", s.RateLimit(limitContact), s.SubmitContact)

	// -------- Boutique --------
	api.GET("/boutique/images", s.ListBoutiqueImages)
	api.POST("/boutique/images", s.auth.RequireAdmin(), s.UploadBoutiqueImage)
	api.PUT("/boutique/images/reorder", s.auth.RequireAdmin(), s.ReorderBoutiqueImages)
	api.DELETE("/boutique/images/:id", s.auth.RequireAdmin(), s.DeleteBoutiqueImage)

	// -------- Settings --------
	settings := api.Group("/settings")
	settings.GET("", s.ListSettings)
	settings.PUT("/:key", s.auth.RequireAdmin(), s.PutSetting)
	settings.GET("/theme", s.GetTheme)
	settings.POST("/theme", s.auth.RequireAdmin(), s.SetTheme)
	settings.GET("/themes", s.ListThemes)
	settings.GET("/categories", s.ListCategories)
	settings.POST("/categories", s.auth.RequireAdmin(), s.CreateCategory)
	settings.PUT("/categories/:id", s.auth.RequireAdmin(), s.UpdateCategory)
	settings.DELETE("/categories/:id", s.auth.RequireAdmin(), s.DeleteCategory)
	settings.GET("/stones", s.listTags(settingsdomain.TagStone))
	settings.POST("/stones", s.auth.RequireAdmin(), s.createTag(settingsdomain.TagStone))
	settings.DELETE("/stones/:id", s.auth.RequireAdmin(), s.deleteTag(settingsdomain.TagStone))
	settings.GET("/colors", s.listTags(settingsdomain.TagColor))
	settings.POST("/colors", s.auth.RequireAdmin(), s.createTag(settingsdomain.TagColor))
	settings.DELETE("/colors/:id", s.auth.RequireAdmin(), s.deleteTag(settingsdomain.TagColor))
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")
	admin.Use(s.auth.RequireAdmin())

	// -------- Products --------
	admin.GET("/products", s.AdminListProducts)
	admin.POST("/products", s.CreateProduct)
	admin.PUT("/products/:id", s.UpdateProduct)
	admin.DELETE("/products/:id", s.DeleteProduct)
	admin.PUT("/products/:id/reorder-images", s.ReorderProductImages)
	admin.DELETE("/product-images/:id", s.DeleteProductImage)

	// -------- Orders --------
	admin.GET("/orders", s.AdminListOrders)
	admin.PUT("/orders/:id/status", s.UpdateOrderStatus)
	admin.PATCH("/orders/:id/status", s.UpdateOrderStatus)
	admin.GET("/orders/:id/packing-slip", s.OrderPackingSlip)
	admin.GET("/stats", s.Stats)

	// -------- Contacts & threads --------
	admin.GET("/contacts", s.ListContacts)
	admin.PUT("/contacts/:id/status", s.SetContactStatus)
	admin.DELETE("/contacts/:id", s.DeleteContact)
	admin.GET("/threads", s.ListThreads)
	admin.GET("/threads/:id", s.GetThread)
	admin.POST("/threads/:id/reply", s.ReplyThread)
	admin.PATCH("/threads/:id/status", s.SetThreadStatus)

	// -------- Settings --------
	admin.PUT("/settings/theme", s.SetTheme)

	// -------- Outbox --------
	admin.GET("/outbox", s.ListOutbox)
	admin.POST("/outbox/dispatch", s.DispatchOutbox)
	admin.POST("/outbox/:id/retry", s.RetryOutbox)
}

// registerFallback serves the storefront pages and their assets.
func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			AbortWithError(c, ErrNotFound)
			return
		}
		if fileExists(publicDir, c.Request.URL.Path) {
			c.File(filepath.Join(publicDir, filepath.Clean(c.Request.URL.Path)))
			return
		}
		if page := c.Request.URL.Path + ".html"; fileExists(publicDir, page) {
			c.File(filepath.Join(publicDir, filepath.Clean(page)))
			return
		}
		if !fileExists(publicDir, "/index.html") {
			AbortWithError(c, ErrNotFound)
			return
		}
		c.File(filepath.Join(publicDir, "index.html"))
	})
}

func fileExists(publicDir, reqPath string) bool {
	clean := filepath.Clean(reqPath)

	// prevent path traversal
	if clean == "." || clean == "/" || clean == ".." || strings.Contains(clean, "..") {
		return false
	}

	fullPath := filepath.Join(publicDir, clean)

	info, err := os.Stat(fullPath)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
