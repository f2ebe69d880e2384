package main

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/redis/go-redis/v9"
    "github.com/shopspring/decimal"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-booking/internal/booking"
    "github.com/iliyamo/cinema-seat-booking/internal/checkout"
    "github.com/iliyamo/cinema-seat-booking/internal/clock"
    "github.com/iliyamo/cinema-seat-booking/internal/config"
    "github.com/iliyamo/cinema-seat-booking/internal/database"
    "github.com/iliyamo/cinema-seat-booking/internal/handler"
    "github.com/iliyamo/cinema-seat-booking/internal/hold"
    "github.com/iliyamo/cinema-seat-booking/internal/logger"
    "github.com/iliyamo/cinema-seat-booking/internal/middleware"
    "github.com/iliyamo/cinema-seat-booking/internal/payment"
    "github.com/iliyamo/cinema-seat-booking/internal/pricing"
    "github.com/iliyamo/cinema-seat-booking/internal/queue"
    "github.com/iliyamo/cinema-seat-booking/internal/repository"
    "github.com/iliyamo/cinema-seat-booking/internal/router"
    "github.com/iliyamo/cinema-seat-booking/internal/scheduler"
    "github.com/iliyamo/cinema-seat-booking/internal/seatmap"
)

func main() {
    if err := config.LoadDotEnv(); err != nil {
        panic(err)
    }
    cfg := config.Load()

    log, err := logger.New(cfg.Env, cfg.LogLevel)
    if err != nil {
        panic(err)
    }
    defer func() { _ = log.Sync() }()

    // Money goes over the wire as JSON numbers.
    decimal.MarshalJSONWithoutQuotes = true

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    db, err := database.Open(database.Options{
        User:         cfg.DBUser,
        Pass:         cfg.DBPass,
        Host:         cfg.DBHost,
        Port:         cfg.DBPort,
        Name:         cfg.DBName,
        MaxOpenConns: cfg.DBMaxOpenConns,
    })
    if err != nil {
        log.Fatal("database unavailable", zap.Error(err))
    }
    defer db.Close()
    if cfg.AutoMigrate {
        applied, err := database.Migrate(ctx, db)
        if err != nil {
            log.Fatal("migrations failed", zap.Error(err))
        }
        if len(applied) > 0 {
            log.Info("migrations applied", zap.Strings("files", applied))
        }
    }

    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Warn("redis unavailable: caching, rate limiting and push updates disabled")
    } else {
        defer rdb.Close()
    }

    clk := clock.NewSystem()
    screens := repository.NewScreenRepo(db)
    showtimes := repository.NewShowtimeRepo(db)
    discounts := repository.NewDiscountRepo(db)
    bookings := repository.NewBookingRepo(db)
    grids := seatmap.NewBuilder(screens)

    engine := pricing.NewEngine(log,
        pricing.WithAccessibilityMarker(cfg.Pricing.AccessibilityMarker),
        pricing.WithTolerance(cfg.Pricing.Tolerance),
    )

    ledger, events := newLedger(cfg, db, rdb, bookings, clk, log)

    gateway, err := newGateway(cfg)
    if err != nil {
        log.Fatal("payment gateway", zap.Error(err))
    }
    log.Info("payment gateway ready", zap.String("provider", gateway.Name()))

    var bookingOpts []booking.Option
    if cfg.Payment.VerifyIntent {
        bookingOpts = append(bookingOpts, booking.WithPaymentVerifier(gateway))
    }
    if cfg.AMQPURL != "" {
        bookingOpts = append(bookingOpts, booking.WithEventPublisher(queue.NewPublisher(cfg.AMQPURL, log)))
        go func() {
            err := queue.StartBookingConsumer(ctx, cfg.AMQPURL, queue.LogFileHandler(cfg.BookingLogDir), log)
            if err != nil && !errors.Is(err, context.Canceled) {
                log.Error("booking consumer stopped", zap.Error(err))
            }
        }()
    }
    bookingSvc := booking.NewService(showtimes, discounts, grids, bookings, engine, clk, log, bookingOpts...)

    var sessions checkout.SessionStore
    if rdb != nil {
        sessions = checkout.NewRedisSessionStore(rdb, cfg.Checkout.RedisPrefix+":", cfg.Checkout.SessionTTL)
    } else {
        log.Warn("checkout sessions kept in memory; run a single instance")
        sessions = checkout.NewMemorySessionStore()
    }
    machine := checkout.NewMachine(checkout.Deps{
        Sessions:  sessions,
        Showtimes: showtimes,
        Discounts: discounts,
        Grids:     grids,
        Holds:     ledger,
        Payments:  gateway,
        Bookings:  bookingSvc,
        Pricing:   engine,
        Clock:     clk,
        Log:       log,
        Currency:  cfg.Payment.Currency,
    })

    sched, err := scheduler.New(log)
    if err != nil {
        log.Fatal("scheduler", zap.Error(err))
    }
    if err := sched.AddHoldSweep(ledger, cfg.Hold.SweepInterval); err != nil {
        log.Fatal("schedule hold sweep", zap.Error(err))
    }
    sched.Start()

    e := echo.New()
    e.HideBanner = true
    e.HidePort = true
    e.Validator = handler.NewRequestValidator()
    e.Use(echomw.Recover(), middleware.RequestID(), middleware.Logger(log))

    quoter := &handler.Quoter{Showtimes: showtimes, Discounts: discounts, Grids: grids, Pricing: engine, Clock: clk}
    health := &handler.HealthHandler{DB: db}
    if rdb != nil {
        health.Redis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
    }
    var holdEvents handler.OccupancyEvents
    if events != nil {
        holdEvents = events
    }
    router.Register(e, router.Handlers{
        Health:   health,
        Catalog:  handler.NewCatalogHandler(quoter, ledger, log),
        Holds:    handler.NewHoldHandler(ledger, holdEvents, cfg.Hold.PollInterval, log),
        Bookings: handler.NewBookingHandler(quoter, gateway, bookingSvc, cfg.Payment.Currency, log),
        Checkout: handler.NewCheckoutHandler(machine, log),
    }, router.Middlewares{
        SeatCache: middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log),
        HoldLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
    }, cfg.JWTSecret)

    go func() {
        addr := ":" + cfg.Port
        log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatal("http server", zap.Error(err))
        }
    }()

    <-ctx.Done()
    log.Info("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Error("http shutdown", zap.Error(err))
    }
    if err := sched.Shutdown(); err != nil {
        log.Error("scheduler shutdown", zap.Error(err))
    }
}

// newLedger picks the hold store.  Redis is preferred; without it holds
// live in MySQL.  The returned broadcaster is nil without Redis.
func newLedger(cfg config.Config, db *sql.DB, rdb *redis.Client, bookings hold.BookingReader, clk clock.Clock, log *zap.Logger) (*hold.Ledger, *hold.Broadcaster) {
    var (
        store  hold.Store
        events *hold.Broadcaster
    )
    backend := cfg.Hold.Backend
    if backend == "redis" && rdb == nil {
        log.Warn("hold backend redis requested without redis, using mysql")
        backend = "mysql"
    }
    switch backend {
    case "redis":
        store = hold.NewRedisStore(rdb, cfg.Hold.RedisPrefix+":")
    case "memory":
        store = hold.NewMemoryStore()
    default:
        store = repository.NewHoldRepo(db)
    }
    opts := []hold.Option{hold.WithTTL(cfg.Hold.TTL)}
    if rdb != nil {
        events = hold.NewBroadcaster(rdb, cfg.Hold.RedisPrefix+":")
        opts = append(opts, hold.WithNotifier(events))
    }
    log.Info("hold ledger ready", zap.String("backend", backend), zap.Duration("ttl", cfg.Hold.TTL))
    return hold.NewLedger(store, bookings, clk, log, opts...), events
}

func newGateway(cfg config.Config) (payment.Gateway, error) {
    switch cfg.Payment.Provider {
    case "mock":
        return payment.NewMockGateway(), nil
    default:
        return payment.NewStripeGateway(payment.StripeConfig{
            SecretKey: cfg.Payment.StripeSecretKey,
            Currency:  cfg.Payment.Currency,
        })
    }
}
