package jobs

import (
	"context"
	"log"
	"time"

	"airdrop-backend/internal/services"
)

const (
	retryAfter  = 2 * time.Minute
	expireAfter = 24 * time.Hour
	retryBatch  = 50
)

// PaymentReconcilerJob re-drives pending payments that recorded a signature
// but never reached a terminal verdict, and expires intents that went stale
// without one.
type PaymentReconcilerJob struct {
	service *services.PaymentService
}

func NewPaymentReconcilerJob(service *services.PaymentService) *PaymentReconcilerJob {
	return &PaymentReconcilerJob{service: service}
}

// Start begins the periodic reconciliation job
func (j *PaymentReconcilerJob) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			j.runOnce()
		}
	}()
}

func (j *PaymentReconcilerJob) runOnce() {
	ctx := context.Background()

	pending, err := j.service.ListRetryablePending(time.Now().Add(-retryAfter), retryBatch)
	if err != nil {
		log.Printf("Reconciler list error: %v", err)
	} else {
		for _, txn := range pending {
			if txn.ProviderRef == nil {
				continue
			}
			// ConfirmPayment is idempotent, a retry either settles the
			// intent or records the failure reason again
			if _, err := j.service.ConfirmPayment(ctx, txn.UserUID, txn.TxnID, *txn.ProviderRef); err != nil {
				log.Printf("Reconciler confirm error for txn %s: %v", txn.TxnID, err)
			}
		}
	}

	expired, err := j.service.ExpireStalePending(time.Now().Add(-expireAfter))
	if err != nil {
		log.Printf("Reconciler expire error: %v", err)
	} else if expired > 0 {
		log.Printf("Reconciler expired %d stale payment intents", expired)
	}
}
