package ledger

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

const balanceKeyPrefix = "balance:"

// BalanceCache is a best-effort TTL cache of live balances (e.g. Redis).
// A miss is reported as ok == false with a nil error.
type BalanceCache interface {
	Get(ctx context.Context, key string) (value decimal.Decimal, ok bool, err error)
	Set(ctx context.Context, key string, value decimal.Decimal, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// BalanceKey namespaces a wallet's cached balance.
func BalanceKey(walletID string) string {
	return balanceKeyPrefix + walletID
}

// detached bounds post-commit side effects (cache calls, notifications) by
// CacheTimeout instead of the request, so a client hang-up right after
// commit still clears stale balances and delivers receipts.
func (e *Engine) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.opts.CacheTimeout)
}

func (e *Engine) cachedBalance(ctx context.Context, walletID string) (decimal.Decimal, bool) {
	if e.cache == nil {
		return decimal.Zero, false
	}
	cctx, cancel := e.detached(ctx)
	defer cancel()

	v, ok, err := e.cache.Get(cctx, BalanceKey(walletID))
	if err != nil {
		e.logger.Warn("balance cache read failed", slog.String("wallet_id", walletID), slog.Any("error", err))
		return decimal.Zero, false
	}
	return v, ok
}

// generation returns the wallet's invalidation counter.
func (e *Engine) generation(walletID string) *atomic.Uint64 {
	v, _ := e.gens.LoadOrStore(walletID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// storeBalance caches a balance computed while the wallet's generation was
// gen. It skips the write when a mutation in this process invalidated the
// wallet meanwhile, so a slow reader cannot park a stale balance for the
// whole TTL. Writers in other processes can still race; the TTL bounds that.
func (e *Engine) storeBalance(ctx context.Context, walletID string, balance decimal.Decimal, gen uint64) {
	if e.cache == nil {
		return
	}
	if e.generation(walletID).Load() != gen {
		return
	}
	cctx, cancel := e.detached(ctx)
	defer cancel()

	if err := e.cache.Set(cctx, BalanceKey(walletID), balance, e.opts.BalanceTTL); err != nil {
		e.logger.Warn("balance cache write failed", slog.String("wallet_id", walletID), slog.Any("error", err))
	}
}

// invalidate drops cached balances after a committed mutation. Failures are
// logged and never reach the caller.
func (e *Engine) invalidate(ctx context.Context, walletIDs ...string) {
	if e.cache == nil {
		return
	}
	cctx, cancel := e.detached(ctx)
	defer cancel()

	for _, id := range walletIDs {
		e.generation(id).Add(1)
		if err := e.cache.Remove(cctx, BalanceKey(id)); err != nil {
			e.logger.Warn("balance cache invalidation failed", slog.String("wallet_id", id), slog.Any("error", err))
		}
	}
}
