package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_intents_created_total",
		Help: "Payment intents created, by provider variant.",
	}, []string{"provider"})

	PaymentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Payments confirmed after provider verification.",
	}, []string{"provider"})

	PaymentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Payments transitioned to failed, by reason.",
	}, []string{"reason"})

	PaymentsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_claimed_total",
		Help: "Anonymous manual payments claimed by a user.",
	})

	OrphansRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_orphans_recovered_total",
		Help: "Confirmed payments whose domain effect was re-applied.",
	})

	SponsorshipsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gas_sponsorships_recorded_total",
		Help: "Gas sponsorships persisted.",
	})

	RefundsTransitioned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_transitioned_total",
		Help: "Refund request state transitions.",
	}, []string{"state"})

	LedgerEntriesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_written_total",
		Help: "Ledger entries written, by entry type.",
	}, []string{"entry_type"})
)
