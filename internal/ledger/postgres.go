package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolation = "23505"

	entryReferenceConstraint = "ledger_entries_wallet_reference_key"
	walletOwnerConstraint    = "wallets_owner_currency_key"
	walletPrimaryKey         = "wallets_pkey"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists wallets, entries and snapshots in PostgreSQL.
type PostgresStore struct {
	pgReader
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgReader: pgReader{q: db}, db: db}
}

// WithTx runs fn inside a read-committed transaction. Wallet rows locked
// through Tx.LockWallet serialise concurrent writers on the same wallet.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&pgTx{pgReader: pgReader{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgReader struct {
	q querier
}

const walletColumns = `id, owner_id, currency, status, created_at`

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w       Wallet
		id      uuid.UUID
		ownerID uuid.UUID
		status  string
	)
	if err := row.Scan(&id, &ownerID, &w.Currency, &status, &w.CreatedAt); err != nil {
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerID = ownerID.String()
	w.Status = WalletStatus(status)
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

func (r pgReader) getWallet(ctx context.Context, id, suffix string) (Wallet, error) {
	walletID, err := parseID("wallet", id)
	if err != nil {
		return Wallet{}, err
	}
	w, err := scanWallet(r.q.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`+suffix, walletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, fmt.Errorf("wallet %s: %w", id, ErrNotFound)
		}
		return Wallet{}, err
	}
	return w, nil
}

func (r pgReader) GetWallet(ctx context.Context, id string) (Wallet, error) {
	return r.getWallet(ctx, id, "")
}

func (r pgReader) ListWallets(ctx context.Context, ownerID, currency string) ([]Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, nil
	}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1`
	args := []any{owner}
	if currency != "" {
		query += ` AND currency = $2`
		args = append(args, currency)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r pgReader) SumEntries(ctx context.Context, walletID string, typ EntryType, cutoff *time.Time) (decimal.Decimal, error) {
	id, err := parseID("wallet", walletID)
	if err != nil {
		return decimal.Zero, err
	}
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM ledger_entries
        WHERE wallet_id = $1 AND type = $2 AND status = $3`
	args := []any{id, string(typ), string(EntryCompleted)}
	if cutoff != nil {
		query += ` AND created_at <= $4`
		args = append(args, cutoff.UTC())
	}

	var sum string
	if err := r.q.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(sum)
}

func (r pgReader) CountEntriesSince(ctx context.Context, walletID string, typ EntryType, since time.Time) (int, error) {
	id, err := parseID("wallet", walletID)
	if err != nil {
		return 0, nil
	}
	var count int
	err = r.q.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries
        WHERE wallet_id = $1 AND type = $2 AND created_at > $3`, id, string(typ), since.UTC()).Scan(&count)
	return count, err
}

func (r pgReader) EntryExists(ctx context.Context, walletID, reference string) (bool, error) {
	id, err := parseID("wallet", walletID)
	if err != nil {
		return false, nil
	}
	var exists bool
	err = r.q.QueryRow(ctx, `SELECT EXISTS (
        SELECT 1 FROM ledger_entries WHERE wallet_id = $1 AND reference = $2)`, id, reference).Scan(&exists)
	return exists, err
}

const entryColumns = `id, wallet_id, amount::text, type, reference, status, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e        Entry
		id       uuid.UUID
		walletID uuid.UUID
		amount   string
		typ      string
		status   string
	)
	if err := row.Scan(&id, &walletID, &amount, &typ, &e.Reference, &status, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Entry{}, fmt.Errorf("parse entry amount: %w", err)
	}
	e.ID = id.String()
	e.WalletID = walletID.String()
	e.Amount = parsed
	e.Type = EntryType(typ)
	e.Status = EntryStatus(status)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (r pgReader) GetEntry(ctx context.Context, id string) (Entry, error) {
	entryID, err := parseID("entry", id)
	if err != nil {
		return Entry{}, err
	}
	e, err := scanEntry(r.q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
		}
		return Entry{}, err
	}
	return e, nil
}

func (r pgReader) GetEntryByReference(ctx context.Context, walletID, reference string) (Entry, error) {
	id, err := parseID("wallet", walletID)
	if err != nil {
		return Entry{}, err
	}
	e, err := scanEntry(r.q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries
        WHERE wallet_id = $1 AND reference = $2`, id, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("entry %q in wallet %s: %w", reference, walletID, ErrNotFound)
		}
		return Entry{}, err
	}
	return e, nil
}

func (r pgReader) LastEntryAt(ctx context.Context, walletID string) (*time.Time, error) {
	id, err := parseID("wallet", walletID)
	if err != nil {
		return nil, err
	}
	var last *time.Time
	if err := r.q.QueryRow(ctx, `SELECT MAX(created_at) FROM ledger_entries WHERE wallet_id = $1`, id).Scan(&last); err != nil {
		return nil, err
	}
	if last != nil {
		utc := last.UTC()
		last = &utc
	}
	return last, nil
}

// whereBuilder accumulates numbered placeholders for dynamic filters.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (b *whereBuilder) add(clause string, arg any) {
	b.args = append(b.args, arg)
	b.clauses = append(b.clauses, fmt.Sprintf(clause, len(b.args)))
}

func (b *whereBuilder) String() string {
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

func (r pgReader) ListEntries(ctx context.Context, walletID string, q EntryQuery) ([]Entry, int, error) {
	id, err := parseID("wallet", walletID)
	if err != nil {
		return nil, 0, err
	}

	var where whereBuilder
	where.add("wallet_id = $%d", id)
	if q.From != nil {
		where.add("created_at >= $%d", q.From.UTC())
	}
	if q.To != nil {
		where.add("created_at <= $%d", q.To.UTC())
	}
	if q.Type != nil {
		where.add("type = $%d", string(*q.Type))
	}
	if q.MinAmount != nil {
		where.add("amount >= $%d::numeric", q.MinAmount.String())
	}
	if q.MaxAmount != nil {
		where.add("amount <= $%d::numeric", q.MaxAmount.String())
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "DESC"
	if q.Ascending {
		dir = "ASC"
	}
	column := "created_at"
	switch q.SortBy {
	case SortByAmount:
		column = "amount"
	case SortByType:
		column = "type"
	}

	args := append(where.args, q.PageSize, q.Offset())
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries%s ORDER BY %s %s, created_at DESC, id LIMIT $%d OFFSET $%d`,
		entryColumns, where.String(), column, dir, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r pgReader) ListSnapshots(ctx context.Context, walletID string, q SnapshotQuery) ([]Snapshot, int, error) {
	id, err := parseID("wallet", walletID)
	if err != nil {
		return nil, 0, err
	}

	var where whereBuilder
	where.add("wallet_id = $%d", id)
	if q.From != nil {
		where.add("snapshot_at >= $%d", q.From.UTC())
	}
	if q.To != nil {
		where.add("snapshot_at <= $%d", q.To.UTC())
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM balance_snapshots`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(where.args, q.PageSize, q.Offset())
	query := fmt.Sprintf(`SELECT id, wallet_id, balance::text, snapshot_at, created_at FROM balance_snapshots%s
        ORDER BY snapshot_at DESC, id LIMIT $%d OFFSET $%d`, where.String(), len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var (
			s       Snapshot
			sid     uuid.UUID
			wid     uuid.UUID
			balance string
		)
		if err := rows.Scan(&sid, &wid, &balance, &s.SnapshotAt, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		if s.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, 0, fmt.Errorf("parse snapshot balance: %w", err)
		}
		s.ID = sid.String()
		s.WalletID = wid.String()
		s.SnapshotAt = s.SnapshotAt.UTC()
		s.CreatedAt = s.CreatedAt.UTC()
		snaps = append(snaps, s)
	}
	return snaps, total, rows.Err()
}

type pgTx struct {
	pgReader
}

func (t *pgTx) LockWallet(ctx context.Context, id string) (Wallet, error) {
	return t.getWallet(ctx, id, " FOR UPDATE")
}

func (t *pgTx) InsertWallet(ctx context.Context, w Wallet) error {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return fmt.Errorf("%w: wallet id: %v", ErrInvalidArgument, err)
	}
	ownerID, err := uuid.Parse(w.OwnerID)
	if err != nil {
		return fmt.Errorf("%w: owner id: %v", ErrInvalidArgument, err)
	}
	_, err = t.q.Exec(ctx, `INSERT INTO wallets (id, owner_id, currency, status, created_at)
        VALUES ($1, $2, $3, $4, $5)`, id, ownerID, w.Currency, string(w.Status), w.CreatedAt.UTC())
	if constraint, ok := uniqueConstraint(err); ok && (constraint == walletOwnerConstraint || constraint == walletPrimaryKey) {
		return fmt.Errorf("owner %s currency %s: %w", w.OwnerID, w.Currency, ErrWalletExists)
	}
	return err
}

func (t *pgTx) UpdateWalletStatus(ctx context.Context, id string, status WalletStatus) error {
	walletID, err := parseID("wallet", id)
	if err != nil {
		return err
	}
	cmd, err := t.q.Exec(ctx, `UPDATE wallets SET status = $1 WHERE id = $2`, string(status), walletID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("wallet %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertEntry(ctx context.Context, e Entry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("%w: entry id: %v", ErrInvalidArgument, err)
	}
	walletID, err := parseID("wallet", e.WalletID)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `INSERT INTO ledger_entries (id, wallet_id, amount, type, reference, status, created_at)
        VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)`,
		id, walletID, e.Amount.String(), string(e.Type), e.Reference, string(e.Status), e.CreatedAt.UTC())
	if constraint, ok := uniqueConstraint(err); ok && constraint == entryReferenceConstraint {
		return fmt.Errorf("wallet %s reference %q: %w", e.WalletID, e.Reference, ErrDuplicateReference)
	}
	return err
}

func (t *pgTx) InsertSnapshot(ctx context.Context, s Snapshot) error {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return fmt.Errorf("%w: snapshot id: %v", ErrInvalidArgument, err)
	}
	walletID, err := parseID("wallet", s.WalletID)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `INSERT INTO balance_snapshots (id, wallet_id, balance, snapshot_at, created_at)
        VALUES ($1, $2, $3::numeric, $4, $5)`, id, walletID, s.Balance.String(), s.SnapshotAt.UTC(), s.CreatedAt.UTC())
	return err
}

// parseID treats malformed identifiers as absent rows.
func parseID(kind, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return parsed, nil
}

func uniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
