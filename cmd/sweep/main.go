// Command sweep runs one maintenance job and exits, for external schedulers
// such as cron.
//
//	sweep -job release-expired-pending
//	sweep -job reset-stale-live-status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/iliyamo/quickreserve/internal/config"
	"github.com/iliyamo/quickreserve/internal/database"
	"github.com/iliyamo/quickreserve/internal/kvstore"
	"github.com/iliyamo/quickreserve/internal/livestatus"
	"github.com/iliyamo/quickreserve/internal/obs"
	"github.com/iliyamo/quickreserve/internal/repository"
	"github.com/iliyamo/quickreserve/internal/service"
	"github.com/iliyamo/quickreserve/internal/worker"
)

func main() {
	job := flag.String("job", "", "job to run: "+worker.ReleaseExpiredPending+" | "+worker.ResetStaleLiveStatus)
	timeout := flag.Duration("timeout", 2*time.Minute, "maximum run time")
	flag.Parse()
	if *job == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	shutdownTracer, err := obs.InitTracer("quickreserve-sweep", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	defer db.Close()
	rdb := config.NewRedisClient(cfg)
	defer rdb.Close()

	// Straight to Redis: a one-shot process has no local state to fall back on.
	cache := kvstore.NewRedis(rdb)
	reservations := service.NewReservationService(db, repository.NewSlotRepo(db), repository.NewBookingRepo(db), nil)
	runner := worker.NewRunner(worker.DefaultJobs(reservations, livestatus.NewStore(cache))...)

	n, err := runner.RunOnce(ctx, *job)
	if err != nil {
		if errors.Is(err, worker.ErrUnknownJob) {
			fmt.Fprintf(os.Stderr, "%v; known jobs: %s\n", err, strings.Join(runner.Names(), ", "))
			os.Exit(2)
		}
		log.Fatalf("%s: %v", *job, err)
	}
	fmt.Printf("%s: %d records updated\n", *job, n)
}
