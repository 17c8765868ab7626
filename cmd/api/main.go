package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nanca/festival-orders/internal/config"
	"github.com/nanca/festival-orders/internal/httpx"
	kafkax "github.com/nanca/festival-orders/internal/kafka"
	"github.com/nanca/festival-orders/internal/orders"
	"github.com/nanca/festival-orders/internal/postgres"
	"github.com/nanca/festival-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers: one per lifecycle topic
	pTicket := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicTicketCreated, 1024)
	pTicket.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicTicketStatusChanged, 1024)
	pStatus.Start(ctx)
	pReject := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockRejected, 1024)
	pReject.Start(ctx)

	// Repos & service
	svc := &orders.Service{
		Catalog:        &orders.CatalogRepo{DB: db},
		Ledger:         &orders.StockRepo{DB: db},
		Tickets:        &orders.TicketRepo{DB: db},
		ProducerTicket: pTicket,
		ProducerStatus: pStatus,
		ProducerReject: pReject,
		ServiceName:    cfg.ServiceName,
	}

	router := httpx.NewRouter()
	th := &httpx.TicketsHandler{
		Svc:     svc,
		Tickets: &orders.TicketRepo{DB: db},
		Catalog: &orders.CatalogRepo{DB: db},
		Redis:   rdb,
		Day:     cfg.FestivalDay,
	}
	th.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pTicket.Close()
	pStatus.Close()
	pReject.Close()
}
