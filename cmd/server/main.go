package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-service/internal/config"
	"github.com/iliyamo/restaurant-service/internal/database"
	"github.com/iliyamo/restaurant-service/internal/handler"
	"github.com/iliyamo/restaurant-service/internal/middleware"
	"github.com/iliyamo/restaurant-service/internal/queue"
	"github.com/iliyamo/restaurant-service/internal/repository"
	"github.com/iliyamo/restaurant-service/internal/router"
	"github.com/iliyamo/restaurant-service/internal/service"
	"github.com/iliyamo/restaurant-service/internal/session"
	"github.com/iliyamo/restaurant-service/internal/store"
	"github.com/iliyamo/restaurant-service/internal/store/mongostore"
	"github.com/iliyamo/restaurant-service/internal/store/sqlstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file, using process environment")
	}
	cfg := config.Load()
	decimal.MarshalJSONWithoutQuotes = true // totals go out as JSON numbers

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient() // nil when disabled or unreachable
	st, closeStore, err := openStore(ctx, cfg, rdb)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	var sessions session.Store = session.NewMemory()
	if rdb != nil {
		sessions = session.NewRedisStore(rdb)
	}

	// repositories
	users := repository.NewUsuarioRepo(st)
	mesaRepo := repository.NewMesaRepo(st)
	pedidoRepo := repository.NewPedidoRepo(st)

	// services
	loc := cfg.Location()
	mesas := service.NewMesaService(mesaRepo, cfg.QRTTL)
	qr := service.NewQRService(mesaRepo, cfg.QRTTL)
	waiter := service.NewWaiterService(mesaRepo)
	pedidos := service.NewPedidoService(pedidoRepo, mesaRepo, queue.NewRabbitPublisher(cfg.RabbitURL), loc)

	// background workers stop with ctx
	go func() {
		if err := service.NewSweeper(qr, cfg.SweepInterval).Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("qr sweeper stopped: %v", err)
		}
	}()
	go func() {
		if err := service.NewAutoClearer(waiter, cfg.WaiterClearDelay).Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("waiter auto-clear stopped: %v", err)
		}
	}()
	go func() {
		_ = queue.StartSalesConsumer(ctx, cfg.RabbitURL, cfg.LogDir)
	}()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))

	cacheCfg := config.LoadCacheConfig()
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(cacheCfg, rdb)
	guard := router.Guard{JWTSecret: cfg.JWTSecret, Users: users}

	auth := handler.NewAuthHandler(cfg, users, sessions)
	mesaH := handler.NewMesaHandler(mesas, qr, waiter)
	mesaH.Origins = cfg.CORSOrigins
	pedidoH := handler.NewPedidoHandler(pedidos)
	pedidoH.Origins = cfg.CORSOrigins
	inventarioH := handler.NewInventarioHandler(repository.NewInventarioRepo(st))
	inventarioH.Origins = cfg.CORSOrigins

	router.RegisterRoutes(e, handler.Health{Store: st})
	router.RegisterAuth(e, auth, guard, limit)
	router.RegisterPublic(e,
		handler.NewMenuHandler(repository.NewPlatoRepo(st), cacheCfg, rdb),
		handler.NewReservaHandler(repository.NewReservaRepo(st)),
		auth, guard, limit, cache)
	router.RegisterCustomer(e, mesaH, pedidoH, limit)
	router.RegisterAdmin(e, router.AdminHandlers{
		Mesas:      mesaH,
		Pedidos:    pedidoH,
		Inventario: inventarioH,
		Usuarios:   handler.NewUsuarioHandler(cfg, users),
	}, guard)

	addr := ":" + cfg.Port
	go func() {
		log.Infof("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

// openStore builds the document store selected by STORE_DRIVER. The
// returned func releases its connections.
func openStore(ctx context.Context, cfg config.Config, rdb *redis.Client) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, nil, err
		}
		s := sqlstore.New(db, rdb)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		go s.Listen(ctx)
		return s, func() { _ = db.Close() }, nil
	case config.DriverMongo:
		db, err := database.OpenMongo(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		s := mongostore.New(db)
		if err := s.EnsureIndexes(ctx); err != nil {
			log.Warnf("mongo indexes: %v", err)
		}
		return s, func() { _ = db.Client().Disconnect(context.Background()) }, nil
	default:
		log.Warn("using in-memory store; data is lost on restart")
		return store.NewMemory(), func() {}, nil
	}
}
