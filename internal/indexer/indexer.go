// Package indexer keeps the vector index and the keyword fallback index
// in sync with the catalog. Admin product writes enqueue jobs; a
// cron-scheduled full resync repairs drift. Nothing here runs on a
// request path.
package indexer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/luxelabs/concierge/internal/search"
	"github.com/luxelabs/concierge/internal/store"
	"github.com/luxelabs/concierge/internal/telemetry"
	"github.com/luxelabs/concierge/internal/vectorindex"
	"github.com/luxelabs/concierge/models"
	"github.com/luxelabs/concierge/provider"
)

const (
	JobUpsert = "upsert"
	JobDelete = "delete"

	resyncLockKey = "concierge:indexer:resync"
	resyncLockTTL = 10 * time.Minute
)

// Job is one unit of index maintenance.
type Job struct {
	Kind      string
	Product   models.Product // upsert
	ProductID string         // delete
}

type Indexer struct {
	embedder provider.Embedder
	index    vectorindex.Index
	catalog  store.Catalog
	keyword  *search.KeywordIndex
	rdb      *redis.Client // resync lock across replicas; may be nil
	cron     *cronexpr.Expression
	jobs     chan Job
	stop     chan struct{}
	logger   *log.Logger

	lastResync time.Time
}

// New builds an indexer. resyncCron accepts standard cron expressions
// and the @hourly/@daily shorthands; empty disables the periodic resync.
func New(embedder provider.Embedder, index vectorindex.Index, catalog store.Catalog, keyword *search.KeywordIndex, rdb *redis.Client, resyncCron string, queueSize int, logger *log.Logger) (*Indexer, error) {
	if queueSize <= 0 {
		queueSize = 256
	}
	var expr *cronexpr.Expression
	if resyncCron != "" {
		var err error
		expr, err = cronexpr.Parse(resyncCron)
		if err != nil {
			return nil, fmt.Errorf("parse resync cron %q: %w", resyncCron, err)
		}
	}
	return &Indexer{
		embedder:   embedder,
		index:      index,
		catalog:    catalog,
		keyword:    keyword,
		rdb:        rdb,
		cron:       expr,
		jobs:       make(chan Job, queueSize),
		stop:       make(chan struct{}),
		logger:     logger,
		lastResync: time.Now(),
	}, nil
}

// Start launches the worker goroutine.
func (ix *Indexer) Start() {
	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ix.stop:
				return
			case job := <-ix.jobs:
				ix.process(job)
			case <-ticker.C:
				ix.maybeResync()
			}
		}
	}()
}

func (ix *Indexer) Stop() { close(ix.stop) }

// EnqueueUpsert hands off a product write without blocking the caller;
// a full queue drops the job and relies on the next resync.
func (ix *Indexer) EnqueueUpsert(p models.Product) bool {
	return ix.enqueue(Job{Kind: JobUpsert, Product: p})
}

func (ix *Indexer) EnqueueDelete(productID string) bool {
	return ix.enqueue(Job{Kind: JobDelete, ProductID: productID})
}

func (ix *Indexer) enqueue(job Job) bool {
	select {
	case ix.jobs <- job:
		return true
	default:
		ix.logger.Printf("index queue full, dropping %s job", job.Kind)
		telemetry.IndexJobs.WithLabelValues(job.Kind, "dropped").Inc()
		return false
	}
}

func (ix *Indexer) process(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var err error
	switch job.Kind {
	case JobUpsert:
		err = ix.upsert(ctx, job.Product)
	case JobDelete:
		err = ix.index.Delete(ctx, job.ProductID)
		if err == nil && ix.keyword != nil {
			err = ix.keyword.Remove(job.ProductID)
		}
	default:
		ix.logger.Printf("unknown index job kind %q", job.Kind)
		return
	}
	if err != nil {
		ix.logger.Printf("index %s job failed: %v", job.Kind, err)
		telemetry.IndexJobs.WithLabelValues(job.Kind, "failed").Inc()
		return
	}
	telemetry.IndexJobs.WithLabelValues(job.Kind, "ok").Inc()
}

func (ix *Indexer) upsert(ctx context.Context, p models.Product) error {
	vector, err := ix.embedder.Embed(ctx, ProductText(p), provider.EmbedPassage)
	if err != nil {
		return fmt.Errorf("embed product %s: %w", p.ID, err)
	}
	err = ix.index.Upsert(ctx, p.ID, vector, vectorindex.Metadata{
		ProductID: p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Price:     p.Price,
	})
	if err != nil {
		return fmt.Errorf("upsert vector %s: %w", p.ID, err)
	}
	if ix.keyword != nil {
		if err := ix.keyword.Index(p); err != nil {
			return fmt.Errorf("keyword index %s: %w", p.ID, err)
		}
	}
	return nil
}

func (ix *Indexer) maybeResync() {
	if ix.cron == nil {
		return
	}
	if ix.cron.Next(ix.lastResync).After(time.Now()) {
		return
	}
	ix.lastResync = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := ix.TryResync(ctx); err != nil {
		ix.logger.Printf("resync failed: %v", err)
	}
}

// TryResync runs a full resync under the cross-replica redis lock, so a
// manual trigger and the cron schedule cannot walk the catalog
// concurrently. ran is false when another resync holds the lock.
func (ix *Indexer) TryResync(ctx context.Context) (ran bool, err error) {
	if ix.rdb != nil {
		ok, err := ix.rdb.SetNX(ctx, resyncLockKey, "1", resyncLockTTL).Result()
		if err != nil {
			return false, fmt.Errorf("resync lock: %w", err)
		}
		if !ok {
			return false, nil
		}
		defer ix.rdb.Del(ctx, resyncLockKey)
	}
	return true, ix.Resync(ctx)
}

// Resync walks the whole catalog and re-upserts every product vector.
// Per-product failures are logged and skipped so one bad record cannot
// stall the rest.
func (ix *Indexer) Resync(ctx context.Context) error {
	products, err := ix.catalog.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list catalog: %w", err)
	}
	var failed int
	for _, p := range products {
		if err := ix.upsert(ctx, p); err != nil {
			failed++
			ix.logger.Printf("resync: %v", err)
		}
	}
	ix.logger.Printf("resync complete: %d products, %d failed", len(products), failed)
	return nil
}

// ProductText is the passage-mode text embedded for a product.
func ProductText(p models.Product) string {
	parts := []string{p.Name, p.Category, p.Description}
	if len(p.Sizes) > 0 {
		parts = append(parts, "Available sizes: "+strings.Join(p.Sizes, ", "))
	}
	if len(p.ShoeSizes) > 0 {
		parts = append(parts, "Available shoe sizes: "+strings.Join(p.ShoeSizes, ", "))
	}
	if p.Price > 0 {
		parts = append(parts, fmt.Sprintf("Price: $%g", p.Price))
	}
	if p.IsFeatured {
		parts = append(parts, "Featured product. Premium quality.")
	}
	var kept []string
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}
