package interventions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mbd888/riskwatch/internal/idgen"
	"github.com/mbd888/riskwatch/internal/offers"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed intervention store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the interventions table and id sequence if they don't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE SEQUENCE IF NOT EXISTS intervention_ids;
		CREATE TABLE IF NOT EXISTS interventions (
			id          VARCHAR(32) PRIMARY KEY,
			seq         BIGINT NOT NULL UNIQUE,
			customer_id VARCHAR(32) NOT NULL,
			offer_type  VARCHAR(32) NOT NULL,
			channel     VARCHAR(32) NOT NULL,
			status      VARCHAR(16) NOT NULL DEFAULT 'Pending',
			outcome     VARCHAR(16) NOT NULL DEFAULT 'Pending',
			date_sent   TIMESTAMPTZ,
			message     TEXT NOT NULL DEFAULT '',
			version     INTEGER NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_interventions_created ON interventions(created_at DESC, seq DESC);
		CREATE INDEX IF NOT EXISTS idx_interventions_customer ON interventions(customer_id);
		CREATE INDEX IF NOT EXISTS idx_interventions_status ON interventions(status);
	`)
	return err
}

const interventionColumns = `id, seq, customer_id, offer_type, channel, status, outcome,
	date_sent, message, version, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, iv *Intervention) error {
	var n int64
	if err := p.db.QueryRowContext(ctx, `SELECT nextval('intervention_ids')`).Scan(&n); err != nil {
		return fmt.Errorf("next intervention id: %w", err)
	}
	iv.ID, iv.seq = idgen.Format(IDPrefix, IDWidth, n), n

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO interventions (`+interventionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		iv.ID, iv.seq, iv.CustomerID, string(iv.OfferType), string(iv.Channel),
		string(iv.Status), string(iv.Outcome), iv.DateSent, iv.Message, iv.Version,
		iv.CreatedAt, iv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert intervention: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Intervention, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+interventionColumns+` FROM interventions WHERE id = $1`, id)

	iv, err := scanIntervention(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get intervention: %w", err)
	}
	return iv, nil
}

// Update writes the mutable lifecycle fields behind a version guard.
func (p *PostgresStore) Update(ctx context.Context, iv *Intervention, expectedVersion int) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE interventions SET
			status     = $2,
			outcome    = $3,
			date_sent  = $4,
			message    = $5,
			updated_at = $6,
			version    = version + 1
		WHERE id = $1 AND version = $7
	`,
		iv.ID, string(iv.Status), string(iv.Outcome), iv.DateSent, iv.Message, iv.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update intervention: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM interventions WHERE id = $1)`, iv.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check intervention: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	iv.Version = expectedVersion + 1
	return nil
}

func (p *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Intervention, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = "+arg(string(filter.Outcome)))
	}
	if filter.CustomerID != "" {
		where = append(where, "customer_id = "+arg(filter.CustomerID))
	}
	if filter.Cursor != nil {
		n, err := idgen.Parse(IDPrefix, filter.Cursor.ID)
		if err != nil {
			return nil, err
		}
		where = append(where, fmt.Sprintf("(created_at, seq) < (%s, %s)", arg(filter.Cursor.CreatedAt), arg(n)))
	}

	query := `SELECT ` + interventionColumns + ` FROM interventions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Intervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, iv)
	}
	return result, rows.Err()
}

func (p *PostgresStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Pending'),
			COUNT(*) FILTER (WHERE outcome = 'Accepted'),
			COUNT(*) FILTER (WHERE outcome = 'Rejected')
		FROM interventions
	`).Scan(&c.Total, &c.Pending, &c.Accepted, &c.Rejected)
	if err != nil {
		return Counts{}, fmt.Errorf("count interventions: %w", err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIntervention(row scanner) (*Intervention, error) {
	var iv Intervention
	var offerType, channel, status, outcome string
	var dateSent sql.NullTime

	err := row.Scan(
		&iv.ID, &iv.seq, &iv.CustomerID, &offerType, &channel, &status, &outcome,
		&dateSent, &iv.Message, &iv.Version, &iv.CreatedAt, &iv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	iv.OfferType = offers.Type(offerType)
	iv.Channel = Channel(channel)
	iv.Status = Status(status)
	iv.Outcome = Outcome(outcome)
	if dateSent.Valid {
		t := dateSent.Time
		iv.DateSent = &t
	}
	iv.CreatedAt = iv.CreatedAt.UTC()
	iv.UpdatedAt = iv.UpdatedAt.UTC()
	return &iv, nil
}
