// Command lifecycle-sweep runs one pass of the paid to processing sweeper, for hosts that
// prefer cron over the in-process loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"ms-storefront/internal/config"
	"ms-storefront/internal/database"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/order"
	"ms-storefront/internal/scheduler"
	"ms-storefront/internal/store"
)

func main() {
	timeout := flag.Duration("timeout", time.Minute, "give up after this long")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logger.NewLogger(logger.Options{Dir: cfg.Log.Dir, Prefix: "lifecycle-sweep", MinLevel: logger.ParseLevel(cfg.Log.Level), NoColor: cfg.Log.NoColor})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer db.Close()

	var queue scheduler.Queue = scheduler.NewMemoryQueue()
	redisClient, err := database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("%v; only the database catch-up will run", err))
	} else if redisClient != nil {
		defer redisClient.Close()
		queue = scheduler.NewRedisQueue(redisClient, cfg.Scheduler.QueueKey)
	}

	var publisher kafka.Publisher = kafka.Nop{}
	if cfg.Kafka.Enabled {
		p := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer p.Close()
		publisher = p
	}

	st := store.New(db)
	sweeper := &scheduler.Sweeper{
		Queue:  queue,
		Finder: st,
		Delay:  cfg.Scheduler.ProcessingDelay,
		Batch:  cfg.Scheduler.BatchSize,
		Logger: log,
	}
	sweeper.Advancer = order.NewLifecycle(st, publisher, sweeper, log)

	res, err := sweeper.RunOnce(ctx)
	if err != nil {
		log.Fatal("SCHEDULER", err.Error())
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLAIMED\tADVANCED\tCAUGHT_UP\tFAILED\tRESCHEDULED")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\n", res.Claimed, res.Advanced, res.CaughtUp, res.Failed, res.Rescheduled)
	tw.Flush()

	if res.Failed > 0 {
		os.Exit(2)
	}
}
