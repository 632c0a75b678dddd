// Package reconciler applies object-store upload notifications to image
// records, moving each PENDING image to UPLOADED or DELETED.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/savak1990/my-dogs/internal/apperr"
	"github.com/savak1990/my-dogs/internal/database"
	"github.com/savak1990/my-dogs/internal/keycodec"
	"github.com/savak1990/my-dogs/internal/metrics"
	"github.com/savak1990/my-dogs/internal/model"
	"github.com/savak1990/my-dogs/internal/storage"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
)

// FinalStatus is the outcome of reconciling one notification.
type FinalStatus string

const (
	StatusUploaded FinalStatus = "UPLOADED"
	StatusDeleted  FinalStatus = "DELETED"
	// StatusStale means no image record matches the key; nothing was changed.
	StatusStale FinalStatus = "STALE"
	// StatusFailed means a transient error occurred; the notification should
	// be redelivered.
	StatusFailed FinalStatus = "FAILED"
)

// Reasons recorded on images and results.
const (
	ReasonUnparseableKey = "unparseable key"
	ReasonParseFailed    = "failed to parse key"
	ReasonStale          = "stale notification"
	ReasonKeyMismatch    = "storage key does not match image record"
	ReasonForeignBucket  = "unexpected bucket"
)

// Result reports what happened to a single notification.
type Result struct {
	Bucket      string
	Key         string
	FinalStatus FinalStatus
	Reason      string
	Err         error
}

// BatchResult holds one Result per notification, in input order.
type BatchResult struct {
	Results []Result
}

// Failed returns the results that need redelivery.
func (b BatchResult) Failed() []Result {
	var failed []Result
	for _, r := range b.Results {
		if r.FinalStatus == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

type Config struct {
	MaxSize int64
	Workers int
}

// Reconciler processes storage notifications. Notifications may arrive more
// than once, out of order, or after the image record expired; processing is
// idempotent.
type Reconciler struct {
	db      database.Database
	store   storage.ObjectStore
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New wires a Reconciler. m may be nil.
func New(db database.Database, store storage.ObjectStore, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Reconciler{db: db, store: store, cfg: cfg, metrics: m, logger: logger}
}

// Reconcile processes every notification independently. A failure on one
// record never prevents the others from being processed.
func (r *Reconciler) Reconcile(ctx context.Context, batch []model.Notification) BatchResult {
	mapper := iter.Mapper[model.Notification, Result]{MaxGoroutines: r.cfg.Workers}
	results := mapper.Map(batch, func(n *model.Notification) Result {
		return r.ReconcileOne(ctx, *n)
	})
	return BatchResult{Results: results}
}

// ReconcileOne processes a single notification. It never panics.
func (r *Reconciler) ReconcileOne(ctx context.Context, n model.Notification) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic while reconciling",
				zap.String("bucket", n.Bucket),
				zap.String("key", n.Key),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			res = failed(n, fmt.Errorf("panic: %v", p))
		}
		r.record(n, res)
	}()

	if err := ctx.Err(); err != nil {
		return failed(n, err)
	}
	// Records without a bucket refer to the upload bucket. Any other bucket
	// is not ours to write or delete in.
	if n.Bucket == "" {
		n.Bucket = r.store.Bucket()
	}
	if n.Bucket != r.store.Bucket() {
		return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: StatusStale, Reason: ReasonForeignBucket}
	}
	if n.Size > r.cfg.MaxSize {
		return r.rejectOversize(ctx, n)
	}

	key, err := keycodec.DecodeStorageKey(n.Key)
	if err != nil {
		r.logger.Warn("notification key does not decode", zap.String("key", n.Key), zap.Error(err))
		if err := r.deleteObject(ctx, n); err != nil {
			return failed(n, err)
		}
		return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: StatusDeleted, Reason: ReasonParseFailed}
	}

	img, applied, err := r.transition(ctx, n, key, model.ImageStatusUploaded, "")
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: StatusStale, Reason: ReasonStale}
	case errors.Is(err, errKeyMismatch):
		return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: StatusStale, Reason: ReasonKeyMismatch}
	case err != nil:
		return failed(n, err)
	case !applied:
		return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: FinalStatus(img.Status), Reason: img.StatusReason}
	}
	return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: StatusUploaded}
}

// rejectOversize removes an object larger than the limit and marks its
// image DELETED when there is one.
func (r *Reconciler) rejectOversize(ctx context.Context, n model.Notification) Result {
	reason := fmt.Sprintf("size exceeds limit: %d/%d", n.Size, r.cfg.MaxSize)
	if err := r.deleteObject(ctx, n); err != nil {
		return failed(n, err)
	}

	key, err := keycodec.DecodeStorageKey(n.Key)
	if err != nil {
		return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: StatusDeleted, Reason: ReasonUnparseableKey}
	}

	img, applied, err := r.transition(ctx, n, key, model.ImageStatusDeleted, reason)
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, errKeyMismatch):
		// The object is gone and there is no record to update.
		return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: StatusDeleted, Reason: reason}
	case err != nil:
		return failed(n, err)
	case !applied:
		return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: FinalStatus(img.Status), Reason: img.StatusReason}
	}
	return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: StatusDeleted, Reason: reason}
}

var errKeyMismatch = errors.New("storage key mismatch")

// transition moves a PENDING image to status and clears its TTL. It reports
// applied=false with the stored image when the image is already terminal.
// A version conflict is retried once against a fresh read.
func (r *Reconciler) transition(ctx context.Context, n model.Notification, key keycodec.StorageKey, status model.ImageStatus, reason string) (*model.Image, bool, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		img, err := r.db.GetImage(ctx, key.OwnerID, key.DogID, key.ImageID)
		if err != nil {
			return nil, false, err
		}
		if img.StorageKey != n.Key {
			return nil, false, errKeyMismatch
		}
		if img.Status.Terminal() {
			return img, false, nil
		}

		updated, err := r.db.UpdateImage(ctx, key.OwnerID, key.DogID, key.ImageID, img.Version, model.StatusPatch(status, reason))
		if err == nil {
			return updated, true, nil
		}
		if !errors.Is(err, apperr.ErrVersionConflict) {
			return nil, false, err
		}
		r.logger.Debug("version conflict, re-reading image",
			zap.String("key", n.Key), zap.Int64("expected_version", img.Version))
		lastErr = err
	}
	return nil, false, lastErr
}

// deleteObject removes the notified object unless it is already absent, so
// redelivered notifications do not issue repeated deletes. This holds for
// deliveries processed one after another; duplicates reconciled at the same
// moment may both see the object and both delete it, which is harmless as
// Delete is idempotent. When presence cannot be determined the delete is
// attempted anyway.
func (r *Reconciler) deleteObject(ctx context.Context, n model.Notification) error {
	exists, err := r.store.Exists(ctx, n.Bucket, n.Key)
	if err == nil && !exists {
		r.logger.Debug("object already absent", zap.String("bucket", n.Bucket), zap.String("key", n.Key))
		return nil
	}
	if err != nil {
		r.logger.Warn("object existence check failed; deleting anyway",
			zap.String("bucket", n.Bucket), zap.String("key", n.Key), zap.Error(err))
	}
	return r.store.Delete(ctx, n.Bucket, n.Key)
}

func (r *Reconciler) record(n model.Notification, res Result) {
	r.metrics.ReconcileOutcome(string(res.FinalStatus))

	fields := []zap.Field{
		zap.String("bucket", n.Bucket),
		zap.String("key", n.Key),
		zap.Int64("size", n.Size),
		zap.String("final_status", string(res.FinalStatus)),
	}
	if res.Reason != "" {
		fields = append(fields, zap.String("reason", res.Reason))
	}
	switch res.FinalStatus {
	case StatusFailed:
		r.logger.Error("notification failed", append(fields, zap.Error(res.Err))...)
	case StatusStale:
		r.logger.Warn("stale notification", fields...)
	default:
		r.logger.Info("notification reconciled", fields...)
	}
}

func failed(n model.Notification, err error) Result {
	return Result{Bucket: n.Bucket, Key: n.Key, FinalStatus: StatusFailed, Reason: err.Error(), Err: err}
}
