package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/lazypower/mnemo/internal/blob"
	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/logging"
	"github.com/lazypower/mnemo/internal/store"
)

// Result status values.
const (
	StatusCreated  = "created"
	StatusUpdated  = "updated"
	StatusStored   = "stored"
	StatusError    = "error"
	StatusComplete = "complete"
	StatusDeleted  = "deleted"
)

// Engine owns one storage root: the blob store and the index database.
// Every blob+index write pair runs under writeMu so no reader observes an
// index row before its blob exists.
type Engine struct {
	DB    *store.DB
	Blobs *blob.Store

	log         *logrus.Logger
	maintenance config.MaintenanceConfig
	timeout     time.Duration
	now         func() time.Time

	writeMu  sync.Mutex
	searchMu sync.RWMutex // held exclusively only while the search index is swapped

	schedMu   sync.Mutex
	scheduler gocron.Scheduler
}

// Options configures New.
type Options struct {
	Logger       *logrus.Logger
	Maintenance  config.MaintenanceConfig
	WriteTimeout time.Duration
}

// New wires an engine over an already opened database and blob store.
func New(db *store.DB, blobs *blob.Store, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	m := opts.Maintenance
	if m == (config.MaintenanceConfig{}) {
		m = config.Default().Maintenance
	}
	return &Engine{
		DB:          db,
		Blobs:       blobs,
		log:         logger,
		maintenance: m,
		timeout:     opts.WriteTimeout,
		now:         time.Now,
	}
}

// Open acquires the storage root described by cfg. With bootstrap set the
// directory layout and schema are created; otherwise the schema must already
// exist and ErrSchemaMissing is returned when it does not.
func Open(cfg config.Config, logger *logrus.Logger, bootstrap bool) (*Engine, error) {
	blobs, err := blob.Open(cfg.Root, blob.Options{CacheTTL: cfg.Engine.BlobCacheTTL})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	path := store.DefaultPath(cfg.Root)
	var db *store.DB
	if bootstrap {
		db, err = store.Open(path)
	} else {
		db, err = store.OpenExisting(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	e := New(db, blobs, Options{
		Logger:       logger,
		Maintenance:  cfg.Maintenance,
		WriteTimeout: cfg.Engine.WriteTimeout,
	})
	e.log.WithFields(logrus.Fields{"root": cfg.Root, "db": path}).Debug("engine opened")
	return e, nil
}

// Close stops the scheduler, if any, and releases the database.
func (e *Engine) Close() error {
	e.Stop()
	return e.DB.Close()
}

// writeCtx bounds one write pair by the configured timeout.
func (e *Engine) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// lockWrite takes the write mutex, then checks the context so a caller that
// gave up while waiting does not start a write.
func (e *Engine) lockWrite(ctx context.Context) error {
	e.writeMu.Lock()
	if err := ctx.Err(); err != nil {
		e.writeMu.Unlock()
		return fmt.Errorf("write aborted: %w", err)
	}
	return nil
}
