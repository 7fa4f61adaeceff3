// Package reconcile brings the remote table into agreement with the local
// record store, one record at a time, tolerating rows deleted remotely
// out-of-band.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vidsync/vidsync/internal/models"
)

// RecordStore is the slice of the local store the reconciler needs.
type RecordStore interface {
	GetBySequenceID(ctx context.Context, sequenceID string) (*models.AnalysisRecord, error)
	GetUnsynced(ctx context.Context) ([]*models.AnalysisRecord, error)
	GetSynced(ctx context.Context) ([]*models.AnalysisRecord, error)
	SetRemoteID(ctx context.Context, sequenceID string, remoteID *string) error
	SyncCounts(ctx context.Context) (total, synced int, err error)
}

// Gateway is the remote table contract. UpdateRecord must return
// (false, nil) when the record id is unknown remotely and reserve errors for
// everything else, so a stale id is distinguishable from a transient failure.
type Gateway interface {
	CreateRecord(ctx context.Context, fields models.CanonicalFields) (string, error)
	UpdateRecord(ctx context.Context, recordID string, fields models.CanonicalFields) (bool, error)
	DeleteRecord(ctx context.Context, recordID string) error
}

// Fielder turns a stored record into the canonical fields sent remotely.
type Fielder func(*models.AnalysisRecord) models.CanonicalFields

// Stats are the aggregate results of a batch sync. Every attempted record
// lands in exactly one counter.
type Stats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Status summarizes how much of the store is currently linked remotely.
type Status struct {
	TotalRecords    int        `json:"total_records"`
	SyncedRecords   int        `json:"synced_records"`
	UnsyncedRecords int        `json:"unsynced_records"`
	SyncRate        float64    `json:"sync_rate"`
	LastSyncTime    *time.Time `json:"last_sync_time,omitempty"`
}

type Reconciler struct {
	store   RecordStore
	gateway Gateway
	fielder Fielder

	// pause between records in a batch, a courtesy to remote rate limits.
	recordDelay time.Duration

	lastSyncTime *time.Time
}

type Option func(*Reconciler)

// WithRecordDelay sets the pause between records during SyncAll.
func WithRecordDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.recordDelay = d }
}

func NewReconciler(store RecordStore, gateway Gateway, fielder Fielder, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:   store,
		gateway: gateway,
		fielder: fielder,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SyncOne reconciles exactly one record. A record without a remote id is
// created remotely; a record with one is updated, and if the remote reports
// the id unknown the id is cleared and a single create retry runs. Remote id
// changes are persisted before returning on every path, so the store never
// keeps an id known to be stale.
//
// Gateway failures other than not-found are returned to the caller; the
// stored remote id is left as it was.
func (r *Reconciler) SyncOne(ctx context.Context, sequenceID string) (bool, error) {
	record, err := r.store.GetBySequenceID(ctx, sequenceID)
	if err != nil {
		return false, fmt.Errorf("loading record %s: %w", sequenceID, err)
	}

	fields := r.fielder(record)

	if !record.Synced() {
		return r.createAndLink(ctx, sequenceID, fields)
	}

	ok, err := r.gateway.UpdateRecord(ctx, *record.RemoteRecordID, fields)
	if err != nil {
		return false, fmt.Errorf("updating record %s: %w", sequenceID, err)
	}
	if ok {
		r.markSynced()
		return true, nil
	}

	// The remote row is gone. Clear the stale id first so the store is
	// consistent even if the retry below fails.
	log.Printf("record %s: remote id %s no longer exists, recreating", sequenceID, *record.RemoteRecordID)
	if err := r.store.SetRemoteID(ctx, sequenceID, nil); err != nil {
		return false, fmt.Errorf("clearing stale remote id for %s: %w", sequenceID, err)
	}

	return r.createAndLink(ctx, sequenceID, fields)
}

func (r *Reconciler) createAndLink(ctx context.Context, sequenceID string, fields models.CanonicalFields) (bool, error) {
	remoteID, err := r.gateway.CreateRecord(ctx, fields)
	if err != nil {
		return false, fmt.Errorf("creating record %s: %w", sequenceID, err)
	}

	if err := r.store.SetRemoteID(ctx, sequenceID, &remoteID); err != nil {
		return false, fmt.Errorf("persisting remote id for %s: %w", sequenceID, err)
	}

	r.markSynced()
	return true, nil
}

// SyncAll reconciles every unsynced record and, when includeSynced is set,
// re-pushes updates for already-linked records. Records are independent: one
// record's gateway failure is counted and the batch continues. Store errors
// abort the batch.
func (r *Reconciler) SyncAll(ctx context.Context, includeSynced bool) (Stats, error) {
	var stats Stats

	unsynced, err := r.store.GetUnsynced(ctx)
	if err != nil {
		return stats, fmt.Errorf("loading unsynced records: %w", err)
	}

	records := unsynced
	if includeSynced {
		synced, err := r.store.GetSynced(ctx)
		if err != nil {
			return stats, fmt.Errorf("loading synced records: %w", err)
		}
		records = append(records, synced...)
	}

	for i, record := range records {
		if i > 0 && r.recordDelay > 0 {
			select {
			case <-time.After(r.recordDelay):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}

		wasSynced := record.Synced()
		ok, err := r.SyncOne(ctx, record.SequenceID)
		switch {
		case err != nil:
			log.Printf("sync failed for record %s: %v", record.SequenceID, err)
			stats.Failed++
		case !ok:
			stats.Failed++
		case wasSynced:
			stats.Updated++
		default:
			stats.Created++
		}
	}

	return stats, nil
}

// DeleteRemote removes a record's remote counterpart and clears the stored
// id. A record that was never synced is a no-op.
func (r *Reconciler) DeleteRemote(ctx context.Context, sequenceID string) error {
	record, err := r.store.GetBySequenceID(ctx, sequenceID)
	if err != nil {
		return fmt.Errorf("loading record %s: %w", sequenceID, err)
	}
	if !record.Synced() {
		return nil
	}

	if err := r.gateway.DeleteRecord(ctx, *record.RemoteRecordID); err != nil {
		return fmt.Errorf("deleting remote record for %s: %w", sequenceID, err)
	}
	if err := r.store.SetRemoteID(ctx, sequenceID, nil); err != nil {
		return fmt.Errorf("clearing remote id for %s: %w", sequenceID, err)
	}
	return nil
}

// Status reports store-wide sync counts.
func (r *Reconciler) Status(ctx context.Context) (Status, error) {
	total, synced, err := r.store.SyncCounts(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("counting records: %w", err)
	}

	status := Status{
		TotalRecords:    total,
		SyncedRecords:   synced,
		UnsyncedRecords: total - synced,
		LastSyncTime:    r.lastSyncTime,
	}
	if total > 0 {
		status.SyncRate = float64(synced) / float64(total) * 100
	}
	return status, nil
}

func (r *Reconciler) markSynced() {
	now := time.Now()
	r.lastSyncTime = &now
}
