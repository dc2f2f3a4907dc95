package main // server entry point

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/evo-ticket-ledger/internal/client"
	"github.com/iliyamo/evo-ticket-ledger/internal/clock"
	"github.com/iliyamo/evo-ticket-ledger/internal/codec"
	"github.com/iliyamo/evo-ticket-ledger/internal/config"
	"github.com/iliyamo/evo-ticket-ledger/internal/database"
	"github.com/iliyamo/evo-ticket-ledger/internal/handler"
	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/middleware"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
	"github.com/iliyamo/evo-ticket-ledger/internal/program"
	"github.com/iliyamo/evo-ticket-ledger/internal/queue"
	"github.com/iliyamo/evo-ticket-ledger/internal/repository"
	"github.com/iliyamo/evo-ticket-ledger/internal/router"
	"github.com/iliyamo/evo-ticket-ledger/internal/scanner"
	"github.com/iliyamo/evo-ticket-ledger/internal/service"
	"github.com/iliyamo/evo-ticket-ledger/internal/wallet"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: .env not loaded: %v", err)
	}
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	programID, err := model.ParsePubkey(cfg.ProgramID)
	if err != nil {
		log.Fatalf("PROGRAM_ID: %v", err)
	}
	cdc, err := buildCodec(cfg)
	if err != nil {
		log.Fatalf("discriminators: %v", err)
	}
	clk := clock.NewSystem()
	proc := program.NewProcessor(programID, cdc)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("db: %v", err)
	}

	signer, err := wallet.Load(cfg.ScannerKeypair)
	if err != nil {
		log.Fatalf("scanner keypair: %v", err)
	}

	var led ledger.Ledger
	switch cfg.LedgerDriver {
	case "memory":
		mem := ledger.NewMemory(proc, clk)
		if err := mem.Fund(signer.PublicKey(), cfg.SeedBalance); err != nil {
			log.Fatalf("ledger: seed: %v", err)
		}
		led = mem
	default:
		led = repository.NewLedgerRepo(db, proc, clk)
	}
	log.Printf("ledger: driver=%s program=%s scanner=%s", cfg.LedgerDriver, programID, signer.PublicKey())

	var notifier queue.Notifier = service.NewActivityPublisher(queue.BrokerURL())
	if cfg.ActivityConsumer {
		go func() {
			if err := queue.StartActivityConsumer(ctx, "logs"); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("activity-consumer: stopped: %v", err)
			}
		}()
	}

	cl := client.New(led, programID, cdc, client.WithClock(clk), client.WithNotifier(notifier))

	health := &scanner.HealthCheck{Ledger: led, Scanner: signer.PublicKey(), MinBalance: cfg.ScannerMinBalance}
	if cfg.ScannerHealthSpec != "" {
		cron, err := scanner.StartHealthCron(cfg.ScannerHealthSpec, health)
		if err != nil {
			log.Fatalf("scanner-health: %v", err)
		}
		defer cron.Stop()
	}

	rdb := config.NewRedisClient()
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, clk)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e, &handler.HealthHandler{Check: health})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg.JWTSecret, cfg.AccessTTL(), cfg.SessionTTL(),
		repository.NewOperatorRepo(db), repository.NewSessionRepo(db), clk), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewLedgerHandler(cl),
		&handler.PresentationHandler{Clock: clk, MaxSkew: cfg.PresentationMaxSkew}, limit, cache)

	if cfg.ScannerEvent != "" {
		event, err := model.ParsePubkey(cfg.ScannerEvent)
		if err != nil {
			log.Fatalf("SCANNER_EVENT: %v", err)
		}
		agent := scanner.NewAgent(led, cdc, programID, event, signer, clk,
			scanner.WithMaxSkew(cfg.PresentationMaxSkew), scanner.WithNotifier(notifier))
		router.RegisterGate(e, handler.NewScanHandler(agent, cl, signer), cfg.JWTSecret, limit)
		log.Printf("gate: serving event %s", event)
	} else {
		log.Printf("gate: SCANNER_EVENT not set, scan endpoints disabled")
	}

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// buildCodec applies the DISCRIMINATOR_* overrides on top of the defaults.
func buildCodec(cfg config.Config) (*codec.Codec, error) {
	d := codec.DefaultDiscriminators()
	for _, o := range []struct {
		raw string
		dst *codec.Discriminator
	}{
		{cfg.DiscriminatorEvent, &d.Event},
		{cfg.DiscriminatorTicket, &d.Ticket},
		{cfg.DiscriminatorListing, &d.Listing},
	} {
		if o.raw == "" {
			continue
		}
		v, err := codec.ParseDiscriminator(o.raw)
		if err != nil {
			return nil, err
		}
		*o.dst = v
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return codec.New(d), nil
}
