package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/iliyamo/parking-rental/internal/availability"
	"github.com/iliyamo/parking-rental/internal/clock"
	"github.com/iliyamo/parking-rental/internal/config"
	"github.com/iliyamo/parking-rental/internal/database"
	"github.com/iliyamo/parking-rental/internal/handler"
	"github.com/iliyamo/parking-rental/internal/middleware"
	"github.com/iliyamo/parking-rental/internal/obs"
	"github.com/iliyamo/parking-rental/internal/queue"
	"github.com/iliyamo/parking-rental/internal/repository"
	"github.com/iliyamo/parking-rental/internal/router"
	"github.com/iliyamo/parking-rental/internal/service"
)

func main() {
	// .env is optional; real environments set variables directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}
	cfg := config.Load()
	mkt, err := config.LoadMarketplace()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	brk, err := config.LoadBroker()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	trc, err := config.LoadTracing()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if mkt.MigrateOnStart {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("db: %v", err)
		}
	}

	// ---- Redis (optional) ----
	var rdb *redis.Client
	if c, err := config.NewRedisClient(ctx); err != nil {
		log.Printf("redis: disabled: %v", err)
	} else {
		rdb = c
		defer rdb.Close()
	}

	// ---- Tracing ----
	shutdownTracer, err := obs.InitTracer(ctx, trc, cfg.Env)
	if err != nil {
		log.Printf("otel: tracing disabled: %v", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	// ---- Domain ----
	clk := clock.NewSystem()
	eval, err := availability.NewEvaluator(mkt.PlatformFeeRate, availability.WithMaxDays(mkt.MaxBookingDays))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db, clk)
	spaceRepo := repository.NewSpaceRepo(db)
	windowRepo := repository.NewWindowRepo(db)
	bookingRepo := repository.NewBookingRepo(db, spaceRepo)
	reviewRepo := repository.NewReviewRepo(db)
	statsRepo := repository.NewStatsRepo(db)

	// a nil *queue.Publisher must not reach the service as a non-nil interface
	var events service.EventPublisher
	if brk.PublishEnabled {
		pub, err := queue.NewPublisher(brk.URL, brk.Exchange)
		if err != nil {
			log.Printf("rabbitmq: publishing disabled: %v", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	bookings := service.NewBookingService(eval, bookingRepo, spaceRepo, windowRepo, events, clk,
		otel.Tracer("github.com/iliyamo/parking-rental/internal/service"))
	reviews := service.NewReviewService(reviewRepo, bookingRepo)

	// ---- Consumers ----
	var wg sync.WaitGroup
	if brk.ConsumersEnabled {
		consumers := []*queue.Consumer{
			{
				Name: "booking-consumer", URL: brk.URL, Exchange: brk.Exchange, Queue: brk.BookingLogQueue,
				Keys:   []string{queue.KeyBookingCreated, queue.KeyBookingStatusChanged},
				Handle: queue.NewBookingLog(brk.BookingLogPath).Handle,
			},
			{
				Name: "payment-consumer", URL: brk.URL, Exchange: brk.Exchange, Queue: brk.PaymentQueue,
				Keys:     []string{queue.KeyPaymentSucceeded, queue.KeyPaymentFailed},
				Prefetch: 10,
				Handle:   queue.PaymentHandler(bookings),
			},
		}
		for _, c := range consumers {
			wg.Add(1)
			go func(c *queue.Consumer) {
				defer wg.Done()
				if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("%s: stopped: %v", c.Name, err)
				}
			}(c)
		}
	}

	// ---- HTTP ----
	paging := handler.Paging{Default: mkt.DefaultPageSize, Max: mkt.MaxPageSize}
	cacheCfg := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())

	limits := router.Limits{
		Global:  middleware.NewTokenBucket(config.LoadRateLimitConfig(""), rdb),
		Auth:    middleware.NewTokenBucket(config.LoadRateLimitConfig("auth"), rdb),
		Booking: middleware.NewTokenBucket(config.LoadRateLimitConfig("booking"), rdb),
	}
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, userRepo, tokenRepo, clk), cfg.JWTSecret, limits)
	router.RegisterSpaces(e,
		handler.NewSpaceHandler(spaceRepo, middleware.NewCachePurger(cacheCfg, rdb), mkt),
		handler.NewAvailabilityHandler(bookings, windowRepo),
		cfg.JWTSecret, middleware.NewRedisCache(cacheCfg, rdb), limits)
	router.RegisterBookings(e, handler.NewBookingHandler(bookings, paging), cfg.JWTSecret, limits)
	router.RegisterReviews(e, handler.NewReviewHandler(reviews, paging), cfg.JWTSecret, limits)
	router.RegisterDashboard(e, handler.NewDashboardHandler(statsRepo, bookings, spaceRepo), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http: shutdown: %v", err)
	}
	wg.Wait()
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("otel: shutdown: %v", err)
	}
}
