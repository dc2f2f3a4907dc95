package scanner

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

// HealthCheck warns when the scanner identity can no longer pay for
// transactions.
type HealthCheck struct {
	Ledger     ledger.Ledger
	Scanner    model.Pubkey
	MinBalance uint64
}

// Run reads the scanner balance once. The bool is false when the balance is
// below the threshold.
func (h *HealthCheck) Run(ctx context.Context) (uint64, bool, error) {
	bal, err := h.Ledger.Balance(ctx, h.Scanner)
	if err != nil {
		log.Printf("scanner-health: balance lookup failed: %v", err)
		return 0, false, err
	}
	if bal < h.MinBalance {
		log.Printf("scanner-health: low balance for %s: %d < %d", h.Scanner, bal, h.MinBalance)
		return bal, false, nil
	}
	return bal, true, nil
}

// StartHealthCron schedules Run on spec (for example "@every 1m"). Stop the
// returned scheduler on shutdown.
func StartHealthCron(spec string, h *HealthCheck) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _, _ = h.Run(ctx)
	}); err != nil {
		return nil, err
	}
	c.Start()
	log.Printf("scanner-health: scheduled %q for %s", spec, h.Scanner)
	return c, nil
}
