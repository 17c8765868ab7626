package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nanca/festival-orders/internal/board"
	"github.com/nanca/festival-orders/internal/config"
	kafkax "github.com/nanca/festival-orders/internal/kafka"
	"github.com/nanca/festival-orders/internal/orders"
	"github.com/nanca/festival-orders/internal/redisx"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &board.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-board",
	}

	group := getenv("BOARD_GROUP", "pickup-board")
	workers := mustAtoi(os.Getenv("BOARD_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicTicketStatusChanged, workers)

	go func() {
		log.Printf("board consumer started: group=%s topic=%s workers=%d", group, orders.TopicTicketStatusChanged, workers)
		if err := cons.Start(ctx, svc.HandleStatusChanged); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
