// Package audit appends structured event records. Transition audits are
// written by the repositories inside the same database transaction as the
// change; this recorder covers standalone events such as reconciliation
// anomalies and operator actions.
package audit

import (
	"context"
	"log"

	"giveflow/internal/models"

	"gorm.io/gorm"
)

type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one audit event. Append-only; failures are logged, never
// propagated into the calling pipeline.
func (r *Recorder) Record(ctx context.Context, event *models.AuditEvent) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		log.Printf("audit: append %s for %s failed: %v", event.Action, event.EntityRef, err)
	}
}

// RecordAnomaly appends a reconciliation anomaly record.
func (r *Recorder) RecordAnomaly(ctx context.Context, reference, detail string) {
	r.Record(ctx, &models.AuditEvent{
		Actor:      "webhook",
		Action:     "reconciliation.anomaly",
		EntityType: "transaction",
		EntityRef:  reference,
		After:      models.JSON{"detail": detail},
	})
}
