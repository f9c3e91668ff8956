package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/querychat/querychat/internal/chat"
)

// Store is the slice of the application store the ledger needs.
type Store interface {
	GetQuota(ctx context.Context, userID string) (chat.UserQuota, error)
	ResetQuotaCycle(ctx context.Context, userID string, resetsAt time.Time) error
}

// Ledger gates messages on the per-user monthly allowance. Rollover is lazy:
// it runs on the first check at or after the cycle boundary and is a no-op on
// repeated checks within the same instant. The increment itself is committed
// by the store together with the persisted turn, once per processed message.
//
// Check-then-increment is a read-modify-write; two concurrent messages from
// the same user can both pass the gate at the boundary. That race is
// tolerated here, matching the documented update contract.
type Ledger struct {
	store Store
	now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Check rolls the cycle over when due, then verifies the allowance. It
// returns chat.ErrQuotaExceeded without any mutation when the user is at
// their limit.
func (l *Ledger) Check(ctx context.Context, userID string) (chat.UserQuota, error) {
	q, err := l.store.GetQuota(ctx, userID)
	if err != nil {
		return chat.UserQuota{}, fmt.Errorf("load quota: %w", err)
	}

	now := l.now()
	if !now.Before(q.CycleResetsAt) {
		next := q.CycleResetsAt
		for !now.Before(next) {
			next = next.AddDate(0, 1, 0)
		}
		if err := l.store.ResetQuotaCycle(ctx, userID, next); err != nil {
			return chat.UserQuota{}, fmt.Errorf("reset quota cycle: %w", err)
		}
		q.QueriesUsed = 0
		q.CycleResetsAt = next
	}

	if q.QueriesUsed >= q.QueriesAllowed {
		return q, chat.ErrQuotaExceeded
	}
	return q, nil
}
