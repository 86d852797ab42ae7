package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Valecer/market-sub000/internal/config"
	"github.com/Valecer/market-sub000/internal/ingest"
	"github.com/Valecer/market-sub000/internal/logging"
	"github.com/Valecer/market-sub000/internal/match"
	"github.com/Valecer/market-sub000/internal/queue"
	"github.com/Valecer/market-sub000/internal/review"
	"github.com/Valecer/market-sub000/internal/storage"
	"github.com/Valecer/market-sub000/internal/suppliers"
	"github.com/Valecer/market-sub000/internal/syncer"
	"github.com/Valecer/market-sub000/internal/synclock"
)

const (
	taskStream  = "pricesync:tasks"
	taskGroup   = "matchers"
	cliConsumer = "pricesync-cli"

	// How long the run status hash stays readable after a run finishes.
	statusWindow = 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := logging.New("pricesync", cfg.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	must(err)
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()

	cmd := os.Args[1]
	switch cmd {
	case "schema:init":
		must(db.InitSchema(ctx))
		fmt.Println("schema initialized")

	case "sync:run":
		provider, err := suppliers.NewSheetsProvider(ctx, cfg)
		must(err)
		lock := synclock.New(rdb, cfg.SyncLockTTL)
		status := syncer.NewRedisStatus(rdb, statusWindow)
		q := queue.New(rdb, taskStream, taskGroup, cliConsumer, log)
		orch := syncer.NewOrchestrator(lock, provider, db, q, status, cfg.MaxTries, log)
		summary, err := orch.Run(ctx)
		must(err)
		fmt.Printf("sync %s status=%s created=%d updated=%d deactivated=%d enqueued=%d failed=%d\n",
			summary.RunID, summary.Status, summary.Created, summary.Updated,
			summary.Deactivated, summary.Enqueued, summary.Failed)
		for _, e := range summary.Errors {
			fmt.Printf("  error: %s\n", e)
		}

	case "ingest:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		supplierCode := fs.String("supplier", "", "supplier code")
		path := fs.String("file", "", "price list xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*supplierCode) == "" || strings.TrimSpace(*path) == "" {
			must(fmt.Errorf("--supplier and --file are required"))
		}
		sup, err := db.GetSupplierByCode(ctx, *supplierCode)
		must(err)
		if sup == nil {
			must(fmt.Errorf("unknown supplier code %q", *supplierCode))
		}
		content, err := os.ReadFile(*path)
		must(err)
		items, err := ingest.ReadPriceList(content)
		must(err)
		inserted, err := db.InsertItems(ctx, sup.ID, items)
		must(err)
		fmt.Printf("ingested %d items for supplier %s\n", inserted, sup.Code)

	case "review:sweep":
		reviews := review.NewQueue(db, cfg.ReviewTTL, log)
		expired, err := reviews.Sweep(ctx)
		must(err)
		fmt.Printf("expired %d review entries\n", expired)

	case "review:approve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		entryID := fs.Int64("entry", 0, "review entry id")
		productID := fs.Int64("product", 0, "product id (defaults to best candidate)")
		_ = fs.Parse(os.Args[2:])
		if *entryID == 0 {
			must(fmt.Errorf("--entry is required"))
		}
		must(db.WithTx(ctx, func(tx *storage.Store) error {
			engine := newEngine(tx, cfg, log)
			return engine.ApproveMatch(ctx, *entryID, *productID)
		}))
		fmt.Printf("review entry %d approved\n", *entryID)

	case "review:reject":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		entryID := fs.Int64("entry", 0, "review entry id")
		_ = fs.Parse(os.Args[2:])
		if *entryID == 0 {
			must(fmt.Errorf("--entry is required"))
		}
		must(db.WithTx(ctx, func(tx *storage.Store) error {
			engine := newEngine(tx, cfg, log)
			return engine.RejectMatch(ctx, *entryID)
		}))
		fmt.Printf("review entry %d rejected, draft product created\n", *entryID)

	case "item:link":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		itemID := fs.Int64("item", 0, "item id")
		productID := fs.Int64("product", 0, "product id")
		_ = fs.Parse(os.Args[2:])
		if *itemID == 0 || *productID == 0 {
			must(fmt.Errorf("--item and --product are required"))
		}
		engine := newEngine(db, cfg, log)
		must(engine.Link(ctx, *itemID, *productID))
		fmt.Printf("item %d linked to product %d\n", *itemID, *productID)

	case "item:unlink":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		itemID := fs.Int64("item", 0, "item id")
		_ = fs.Parse(os.Args[2:])
		if *itemID == 0 {
			must(fmt.Errorf("--item is required"))
		}
		engine := newEngine(db, cfg, log)
		must(engine.Unlink(ctx, *itemID))
		fmt.Printf("item %d unlinked\n", *itemID)

	case "dlq:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 50, "max entries")
		_ = fs.Parse(os.Args[2:])
		dlq := queue.NewRedisDeadLetter(rdb, cfg.DeadLetterTTL)
		entries, err := dlq.List(ctx, *limit)
		must(err)
		for _, e := range entries {
			fmt.Printf("%s kind=%s tries=%d failed_at=%s error=%s\n",
				e.Task.TaskID, e.Task.Kind, e.Task.TryCount+1, e.FailedAt.Format("2006-01-02 15:04:05"), e.Error)
		}
		fmt.Printf("%d dead letters\n", len(entries))

	default:
		usage()
		os.Exit(1)
	}
}

func newEngine(db *storage.Store, cfg config.Config, log zerolog.Logger) *match.Engine {
	reviews := review.NewQueue(db, cfg.ReviewTTL, log)
	return match.NewEngine(db, reviews, cfg.ReviewThreshold, log)
}

func usage() {
	fmt.Println("usage: pricesync <command>")
	fmt.Println("commands:")
	fmt.Println("  schema:init")
	fmt.Println("  sync:run")
	fmt.Println("  ingest:xlsx --supplier=CODE --file=./prices.xlsx")
	fmt.Println("  review:sweep")
	fmt.Println("  review:approve --entry=1 [--product=2]")
	fmt.Println("  review:reject --entry=1")
	fmt.Println("  item:link --item=1 --product=2")
	fmt.Println("  item:unlink --item=1")
	fmt.Println("  dlq:list [--limit=50]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
