package main

import (
	"context"
	"errors"
	"eventix/src/boot"
	"eventix/src/config"
	"eventix/src/lib"
	"eventix/src/lib/mailer"
	"eventix/src/middlewares"
	"eventix/src/services"
	"eventix/src/types"
	"net/http"
	"os"
	"os/signal"
	"path"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	apiPrefix string = "/api/v1"
)

var attendDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := time.Parse(config.DATE_FORMAT, date)
	return err == nil
}

var paymentMethodValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	method, ok := fl.Field().Interface().(string)
	return ok && types.PaymentMethod(method).Valid()
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("attenddate", attendDateValidatorFunc)
		v.RegisterValidation("paymentmethod", paymentMethodValidatorFunc)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm, err := strconv.ParseBool(os.Getenv("MAINTENANCE_MODE"))
		if err == nil && mm {
			err := errors.New("server is under maintenance")
			zap.L().Warn(err.Error(), zap.String("path", ctx.Request.URL.Path))
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg.IsLocal() {
		return cors.Default()
	}
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
	cc.AllowOriginFunc = func(origin string) bool {
		match, _ := regexp.MatchString(`(\w+.?)+\.amazonaws\.com$`, origin)
		if match {
			return true
		}
		match, _ = regexp.MatchString(cfg.AppHost, origin)
		return match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	return cors.New(cc)
}

// setupRoutes mounts the metrics endpoint, local uploads and the
// authorized transaction API.
func setupRoutes(router *gin.Engine, cfg *config.Config, svc *services.TransactionService) *gin.Engine {
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if cfg.StorageDriver == "local" {
		router.Static("/uploads", cfg.UploadDir)
	}

	authorized := apiv1Group(router)
	authorized.Use(middlewares.AuthMiddleware(cfg.JWTSecret))
	{
		authorized = transactionHandlers(authorized, svc, cfg)
		authorized = ticketHandlers(authorized, svc, cfg)
	}
	return router
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" || apiEnv == "" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil && !os.IsNotExist(err) {
			panic(err)
		}
	}
	cfg := config.LoadConfig()

	logger := lib.NewLogger(cfg)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := boot.InitStore(cfg)
	if err != nil {
		logger.Fatal("error initializing store", zap.Error(err))
	}
	uploader, err := boot.InitUploader(ctx, cfg)
	if err != nil {
		logger.Fatal("error initializing uploader", zap.Error(err))
	}
	mail, err := mailer.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("error initializing mailer", zap.Error(err))
	}
	publisher, flush, err := boot.InitPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("error initializing publisher", zap.Error(err))
	}
	defer flush()

	svc := services.NewTransactionService(st,
		services.WithLogger(logger),
		services.WithUploader(uploader),
		services.WithMailer(mail),
		services.WithPublisher(publisher),
		services.WithOptions(services.Options{
			PaymentWindow:       cfg.PaymentWindow,
			StaleAfter:          cfg.StaleAfter,
			AtomicTimeout:       cfg.AtomicTimeout,
			ReleaseHoldOnExpiry: cfg.ReleaseHoldOnExpiry,
		}),
	)
	defer svc.Wait()

	sweeper := boot.InitSweeper(cfg, svc, boot.InitLocker(cfg))
	if err := boot.InitScheduler(cfg, sweeper); err != nil {
		logger.Fatal("error initializing scheduler", zap.Error(err))
	}
	defer boot.StopScheduler()

	if err := boot.InitMailWorker(ctx, cfg); err != nil {
		logger.Error("error starting mail worker", zap.Error(err))
	}

	registerValidators()

	router := setupRouter()
	router.Use(corsMiddleware(cfg))
	router = maintenanceModeMiddleware(router)
	router = setupRoutes(router, cfg, svc)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router.Handler(),
	}
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down server", zap.Error(err))
	}
}
