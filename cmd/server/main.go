package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/quickreserve/internal/config"
	"github.com/iliyamo/quickreserve/internal/database"
	"github.com/iliyamo/quickreserve/internal/directory"
	"github.com/iliyamo/quickreserve/internal/handler"
	"github.com/iliyamo/quickreserve/internal/kvstore"
	"github.com/iliyamo/quickreserve/internal/livestatus"
	"github.com/iliyamo/quickreserve/internal/nearby"
	"github.com/iliyamo/quickreserve/internal/notify"
	"github.com/iliyamo/quickreserve/internal/obs"
	"github.com/iliyamo/quickreserve/internal/ratelimit"
	"github.com/iliyamo/quickreserve/internal/repository"
	"github.com/iliyamo/quickreserve/internal/router"
	"github.com/iliyamo/quickreserve/internal/service"
	"github.com/iliyamo/quickreserve/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer("quickreserve", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient(cfg)
	defer rdb.Close()
	cache := kvstore.NewFallback(kvstore.NewRedis(rdb), kvstore.NewMemory())

	// Events
	var publisher notify.Publisher = notify.Nop{}
	if cfg.RabbitURL != "" {
		p := notify.NewAMQPPublisher(cfg.RabbitURL, cfg.EventsExchange, 1024)
		go p.Run(ctx)
		publisher = p
		if cfg.EventConsumerEnabled {
			go (&notify.EventLog{Dir: "logs"}).Consume(ctx, cfg.RabbitURL, cfg.EventsExchange)
		}
	} else {
		log.Printf("notify: RABBITMQ_URL not set, events are discarded")
	}

	// Data access and services
	slots := repository.NewSlotRepo(db)
	bookings := repository.NewBookingRepo(db)
	venues := repository.NewVenueRepo(db)
	users := repository.NewUserRepo(db)
	companies := repository.NewCompanyRepo(db)
	statuses := livestatus.NewStore(cache)
	reservations := service.NewReservationService(db, slots, bookings, publisher)

	gateway := directory.NewGateway(
		directory.Config{APIKey: cfg.TwoGISAPIKey, BaseURL: cfg.TwoGISBaseURL},
		cache,
		ratelimit.NewFixedWindow(cache, cfg.TwoGISRPMLimit, time.Minute),
		nil,
	)
	if !gateway.Enabled() {
		log.Printf("directory: TWOGIS_API_KEY not set, nearby search returns local venues only")
	}
	finder := nearby.NewFinder(gateway, venues, statuses)

	// Background sweeps
	runner := worker.NewRunner(worker.DefaultJobs(reservations, statuses)...)
	if cfg.JobsEnabled {
		runner.Start(ctx)
	}

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	router.Register(e, router.Deps{
		JWTSecret:    cfg.JWTSecret,
		Cache:        cache,
		Auth:         handler.NewAuthHandler(users, cfg.JWTSecret, cfg.AccessTTL(), cfg.BcryptCost),
		Business:     handler.NewBusinessHandler(venues, slots, bookings, reservations, statuses, publisher),
		Client:       handler.NewClientHandler(finder, venues, slots, reservations, bookings),
		Company:      handler.NewCompanyHandler(companies, statuses, publisher),
		ReserveLimit: ratelimit.NewFixedWindow(cache, cfg.APIRateLimitPerMin, time.Minute),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	runner.Wait()
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}
}
