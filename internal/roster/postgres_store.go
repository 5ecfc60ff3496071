package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL. The seq column records
// insertion order so ties on risk_score list the same way the memory store does.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed roster store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the customers table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS customers (
			seq                 BIGSERIAL,
			id                  VARCHAR(32) PRIMARY KEY,
			name                TEXT NOT NULL,
			monthly_income      NUMERIC(20,2) NOT NULL,
			emi_amount          NUMERIC(20,2) NOT NULL,
			savings_balance     NUMERIC(20,2) NOT NULL,
			loan_type           VARCHAR(32) NOT NULL,
			risk_score          INTEGER NOT NULL CHECK (risk_score BETWEEN 0 AND 100),
			health_score        INTEGER NOT NULL CHECK (health_score BETWEEN 20 AND 100),
			missed_emi_6m       INTEGER NOT NULL DEFAULT 0,
			salary_delay        INTEGER NOT NULL DEFAULT 0,
			risk_momentum       VARCHAR(16) NOT NULL,
			savings_decline     INTEGER NOT NULL DEFAULT 0,
			discretionary_ratio INTEGER NOT NULL DEFAULT 0,
			atm_spike           BOOLEAN NOT NULL DEFAULT FALSE,
			failed_auto_debits  INTEGER NOT NULL DEFAULT 0,
			utility_delay       INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_customers_risk ON customers(risk_score DESC, seq ASC);
	`)
	return err
}

const customerColumns = `id, name, monthly_income, emi_amount, savings_balance, loan_type,
	risk_score, health_score, missed_emi_6m, salary_delay, risk_momentum,
	savings_decline, discretionary_ratio, atm_spike, failed_auto_debits, utility_delay`

func (p *PostgresStore) Insert(ctx context.Context, c *Customer) error {
	bm := c.BehavioralMetrics
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		c.ID, c.Name, c.MonthlyIncome, c.EMIAmount, c.SavingsBalance, string(c.LoanType),
		c.RiskScore, c.HealthScore, c.MissedEMI6M, c.SalaryDelay, string(c.RiskMomentum),
		bm.SavingsDecline, bm.DiscretionaryRatio, bm.ATMSpike, bm.FailedAutoDebits, bm.UtilityDelay,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Customer, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)

	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*Customer, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+customerColumns+` FROM customers
		ORDER BY risk_score DESC, seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Update rewrites the risk attributes. Identity and amounts are immutable.
func (p *PostgresStore) Update(ctx context.Context, c *Customer) error {
	bm := c.BehavioralMetrics
	result, err := p.db.ExecContext(ctx, `
		UPDATE customers SET
			risk_score          = $2,
			health_score        = $3,
			missed_emi_6m       = $4,
			salary_delay        = $5,
			risk_momentum       = $6,
			savings_decline     = $7,
			discretionary_ratio = $8,
			atm_spike           = $9,
			failed_auto_debits  = $10,
			utility_delay       = $11
		WHERE id = $1
	`,
		c.ID, c.RiskScore, c.HealthScore, c.MissedEMI6M, c.SalaryDelay, string(c.RiskMomentum),
		bm.SavingsDecline, bm.DiscretionaryRatio, bm.ATMSpike, bm.FailedAutoDebits, bm.UtilityDelay,
	)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCustomer(row scannable) (*Customer, error) {
	var c Customer
	var loanType, momentum string
	bm := &c.BehavioralMetrics

	err := row.Scan(
		&c.ID, &c.Name, &c.MonthlyIncome, &c.EMIAmount, &c.SavingsBalance, &loanType,
		&c.RiskScore, &c.HealthScore, &c.MissedEMI6M, &c.SalaryDelay, &momentum,
		&bm.SavingsDecline, &bm.DiscretionaryRatio, &bm.ATMSpike, &bm.FailedAutoDebits, &bm.UtilityDelay,
	)
	if err != nil {
		return nil, err
	}
	c.LoanType = LoanType(loanType)
	c.RiskMomentum = Momentum(momentum)
	return &c, nil
}
