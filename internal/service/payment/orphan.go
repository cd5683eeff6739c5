package payment

import (
	"context"
	"fmt"

	"github.com/fullstackragab/wihngo-payments/internal/logging"
	"github.com/fullstackragab/wihngo-payments/internal/metrics"
)

// RecoverOrphans re-drives effect application for confirmed payments whose
// support record never materialized, which happens when the process dies
// between confirmation and effect. Anonymous unclaimed payments are not
// returned by the scan; their effect waits for a claim.
func (s *Service) RecoverOrphans(ctx context.Context, limit int) (int, error) {
	log := logging.FromContext(ctx)

	orphans, err := s.payments.GetOrphanedConfirmed(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("RecoverOrphans: %w", err)
	}

	recovered := 0
	for i := range orphans {
		p := &orphans[i]
		if err := s.applyEffect(ctx, p); err != nil {
			log.Error("orphan recovery failed",
				"payment_id", p.ID,
				"error", err,
			)
			continue
		}
		recovered++
		metrics.OrphansRecovered.Inc()
		log.Info("orphan recovered", "payment_id", p.ID)
	}

	return recovered, nil
}
