package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/metric"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore wraps an open pool. The store owns the pool afterwards.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) Transactions() TransactionRepository { return postgresTransactions{s} }
func (s *PostgresStore) Alerts() AlertRepository             { return postgresAlerts{s} }
func (s *PostgresStore) Metrics() MetricRepository           { return postgresMetrics{s} }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const transactionColumns = `
	id, transaction_id, account_id, amount, currency, transaction_type, "timestamp",
	transaction_velocity, avg_ticket_size, time_of_day, inter_transaction_interval, day_night_ratio,
	ip_address, ip_country, billing_country, geo_velocity, merchant_name, merchant_category, location,
	device_fingerprint, failed_attempts, email_age, email_domain, phone_verified, social_profile_presence,
	ml_score, risk_level, confidence, attribution,
	high_value_flag, structuring_flag, ip_mismatch_flag, geo_velocity_flag, multiple_failures_flag,
	status, alert_generated, review_status, created_at, updated_at`

type postgresTransactions struct{ s *PostgresStore }

func (r postgresTransactions) SaveScored(ctx context.Context, t *transaction.Transaction, a *alert.Alert) error {
	attribution, err := json.Marshal(t.Attribution)
	if err != nil {
		return fmt.Errorf("failed to marshal attribution: %w", err)
	}

	tx, err := r.s.pool.Begin(ctx)
	if err != nil {
		return wrapError(err, "transaction", "begin saving")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39)`,
		t.ID, t.TransactionID, t.AccountID, t.Amount, t.Currency, string(t.TransactionType), t.Timestamp,
		t.TransactionVelocity, nullDecimal(t.AvgTicketSize), t.TimeOfDay, t.InterTransactionInterval, t.DayNightRatio,
		t.IPAddress, t.IPCountry, t.BillingCountry, t.GeoVelocity, t.MerchantName, t.MerchantCategory, t.Location,
		t.DeviceFingerprint, t.FailedAttempts, t.EmailAge, t.EmailDomain, t.PhoneVerified, t.SocialProfilePresence,
		t.MLScore, string(t.RiskLevel), t.Confidence, attribution,
		t.RuleFlags.HighValue, t.RuleFlags.Structuring, t.RuleFlags.IPMismatch, t.RuleFlags.GeoVelocity, t.RuleFlags.MultipleFailures,
		string(t.Status), t.AlertGenerated, string(t.ReviewStatus), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return wrapError(err, "transaction", "save")
	}

	if a != nil {
		if err := insertAlert(ctx, tx, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapError(err, "transaction", "commit")
	}
	return nil
}

func (r postgresTransactions) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	row := r.s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, wrapError(err, "transaction", "get")
	}
	return t, nil
}

func (r postgresTransactions) List(ctx context.Context, page Page) ([]*transaction.Transaction, error) {
	page = page.Normalize()
	return r.query(ctx, `SELECT `+transactionColumns+` FROM transactions
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
}

func (r postgresTransactions) ListFlagged(ctx context.Context, page Page) ([]*transaction.Transaction, error) {
	page = page.Normalize()
	return r.query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE status = 'FLAGGED' OR alert_generated
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
}

func (r postgresTransactions) ListByRiskLevel(ctx context.Context, level transaction.RiskLevel, page Page) ([]*transaction.Transaction, error) {
	page = page.Normalize()
	return r.query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE risk_level = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, string(level), page.Limit, page.Offset)
}

func (r postgresTransactions) query(ctx context.Context, sql string, args ...interface{}) ([]*transaction.Transaction, error) {
	rows, err := r.s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapError(err, "transaction", "list")
	}
	defer rows.Close()

	out := make([]*transaction.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, wrapError(err, "transaction", "scan")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "transaction", "list")
	}
	return out, nil
}

func (r postgresTransactions) UpdateReviewStatus(ctx context.Context, id uuid.UUID, status transaction.ReviewStatus) (*transaction.Transaction, error) {
	row := r.s.pool.QueryRow(ctx, `
		UPDATE transactions SET review_status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+transactionColumns, id, string(status), time.Now().UTC())
	t, err := scanTransaction(row)
	if err != nil {
		return nil, wrapError(err, "transaction", "update")
	}
	return t, nil
}

func (r postgresTransactions) CountSimilarRecent(ctx context.Context, accountID string, band transaction.AmountBand, window time.Duration, asOf time.Time) (int, error) {
	var count int
	err := r.s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE account_id = $1
		  AND amount >= $2 AND amount < $3
		  AND "timestamp" BETWEEN $4 AND $5`,
		accountID, band.Lower, band.Upper, asOf.Add(-window), asOf,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting similar transactions for %s: %w", accountID, err)
	}
	return count, nil
}

func (r postgresTransactions) Stats(ctx context.Context) (*TransactionStats, error) {
	stats := &TransactionStats{
		RiskDistribution: map[transaction.RiskLevel]int{
			transaction.RiskLevelLow:    0,
			transaction.RiskLevelMedium: 0,
			transaction.RiskLevelHigh:   0,
		},
	}

	err := r.s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'FLAGGED' OR alert_generated)
		FROM transactions`).Scan(&stats.Total, &stats.Flagged)
	if err != nil {
		return nil, wrapError(err, "transaction stats", "count")
	}

	rows, err := r.s.pool.Query(ctx, `SELECT risk_level, COUNT(*) FROM transactions GROUP BY risk_level`)
	if err != nil {
		return nil, wrapError(err, "transaction stats", "group")
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, wrapError(err, "transaction stats", "scan")
		}
		stats.RiskDistribution[transaction.RiskLevel(level)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "transaction stats", "group")
	}
	return stats, nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var (
		t                                  transaction.Transaction
		txnType, riskLevel, status, review string
		avgTicket                          decimal.NullDecimal
		attribution                        []byte
	)

	err := row.Scan(
		&t.ID, &t.TransactionID, &t.AccountID, &t.Amount, &t.Currency, &txnType, &t.Timestamp,
		&t.TransactionVelocity, &avgTicket, &t.TimeOfDay, &t.InterTransactionInterval, &t.DayNightRatio,
		&t.IPAddress, &t.IPCountry, &t.BillingCountry, &t.GeoVelocity, &t.MerchantName, &t.MerchantCategory, &t.Location,
		&t.DeviceFingerprint, &t.FailedAttempts, &t.EmailAge, &t.EmailDomain, &t.PhoneVerified, &t.SocialProfilePresence,
		&t.MLScore, &riskLevel, &t.Confidence, &attribution,
		&t.RuleFlags.HighValue, &t.RuleFlags.Structuring, &t.RuleFlags.IPMismatch, &t.RuleFlags.GeoVelocity, &t.RuleFlags.MultipleFailures,
		&status, &t.AlertGenerated, &review, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.TransactionType = transaction.Type(txnType)
	t.RiskLevel = transaction.RiskLevel(riskLevel)
	t.Status = transaction.Status(status)
	t.ReviewStatus = transaction.ReviewStatus(review)
	if avgTicket.Valid {
		v := avgTicket.Decimal
		t.AvgTicketSize = &v
	}
	if len(attribution) > 0 {
		if err := json.Unmarshal(attribution, &t.Attribution); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attribution: %w", err)
		}
	}
	return &t, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

const alertColumns = `id, transaction_id, alert_type, priority, description, details, status, assigned_to, created_at, resolved_at`

func insertAlert(ctx context.Context, tx pgx.Tx, a *alert.Alert) error {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal alert details: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.TransactionID, string(a.AlertType), string(a.Priority), a.Description, details,
		string(a.Status), a.AssignedTo, a.CreatedAt, a.ResolvedAt,
	)
	if err != nil {
		return wrapError(err, "alert", "save")
	}
	return nil
}

type postgresAlerts struct{ s *PostgresStore }

func (r postgresAlerts) GetByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	a, err := scanAlert(r.s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		return nil, wrapError(err, "alert", "get")
	}
	return a, nil
}

func (r postgresAlerts) List(ctx context.Context, page Page) ([]*alert.Alert, error) {
	page = page.Normalize()
	return r.query(ctx, `SELECT `+alertColumns+` FROM alerts
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
}

func (r postgresAlerts) ListActive(ctx context.Context, page Page) ([]*alert.Alert, error) {
	page = page.Normalize()
	return r.query(ctx, `SELECT `+alertColumns+` FROM alerts WHERE status = 'ACTIVE'
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
}

func (r postgresAlerts) ListByPriority(ctx context.Context, priority alert.Priority, page Page) ([]*alert.Alert, error) {
	page = page.Normalize()
	return r.query(ctx, `SELECT `+alertColumns+` FROM alerts WHERE priority = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, string(priority), page.Limit, page.Offset)
}

func (r postgresAlerts) query(ctx context.Context, sql string, args ...interface{}) ([]*alert.Alert, error) {
	rows, err := r.s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapError(err, "alert", "list")
	}
	defer rows.Close()

	out := make([]*alert.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, wrapError(err, "alert", "scan")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "alert", "list")
	}
	return out, nil
}

func (r postgresAlerts) Update(ctx context.Context, a *alert.Alert, from alert.Status) error {
	tag, err := r.s.pool.Exec(ctx, `
		UPDATE alerts SET status = $2, assigned_to = $3, resolved_at = $4
		WHERE id = $1 AND status = $5`,
		a.ID, string(a.Status), a.AssignedTo, a.ResolvedAt, string(from))
	if err != nil {
		return wrapError(err, "alert", "update")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM alerts WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
		return wrapError(err, "alert", "update")
	}
	if !exists {
		return wrapError(pgx.ErrNoRows, "alert", "update")
	}
	return errAlertChanged(from)
}

func (r postgresAlerts) CountActiveByPriority(ctx context.Context) (map[alert.Priority]int, error) {
	counts := map[alert.Priority]int{
		alert.PriorityHigh:   0,
		alert.PriorityMedium: 0,
		alert.PriorityLow:    0,
	}

	rows, err := r.s.pool.Query(ctx, `SELECT priority, COUNT(*) FROM alerts WHERE status = 'ACTIVE' GROUP BY priority`)
	if err != nil {
		return nil, wrapError(err, "alert counts", "group")
	}
	defer rows.Close()

	for rows.Next() {
		var priority string
		var n int
		if err := rows.Scan(&priority, &n); err != nil {
			return nil, wrapError(err, "alert counts", "scan")
		}
		counts[alert.Priority(priority)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "alert counts", "group")
	}
	return counts, nil
}

func scanAlert(row pgx.Row) (*alert.Alert, error) {
	var (
		a                         alert.Alert
		alertType, priority, stat string
		details                   []byte
	)
	err := row.Scan(&a.ID, &a.TransactionID, &alertType, &priority, &a.Description, &details,
		&stat, &a.AssignedTo, &a.CreatedAt, &a.ResolvedAt)
	if err != nil {
		return nil, err
	}

	a.AlertType = alert.Type(alertType)
	a.Priority = alert.Priority(priority)
	a.Status = alert.Status(stat)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert details: %w", err)
		}
	}
	return &a, nil
}

type postgresMetrics struct{ s *PostgresStore }

func (r postgresMetrics) Record(ctx context.Context, m *metric.SystemMetric) error {
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO system_metrics (id, metric_name, metric_value, "timestamp")
		VALUES ($1, $2, $3, $4)`,
		m.ID, m.MetricName, m.MetricValue, m.Timestamp)
	if err != nil {
		return wrapError(err, "metric", "record")
	}
	return nil
}

func (r postgresMetrics) List(ctx context.Context, name string, limit int) ([]*metric.SystemMetric, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.query(ctx, `
		SELECT id, metric_name, metric_value, "timestamp" FROM system_metrics
		WHERE $1 = '' OR metric_name = $1
		ORDER BY "timestamp" DESC LIMIT $2`, name, limit)
}

func (r postgresMetrics) Latest(ctx context.Context) ([]*metric.SystemMetric, error) {
	return r.query(ctx, `
		SELECT DISTINCT ON (metric_name) id, metric_name, metric_value, "timestamp"
		FROM system_metrics
		ORDER BY metric_name, "timestamp" DESC`)
}

func (r postgresMetrics) query(ctx context.Context, sql string, args ...interface{}) ([]*metric.SystemMetric, error) {
	rows, err := r.s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapError(err, "metric", "list")
	}
	defer rows.Close()

	out := make([]*metric.SystemMetric, 0)
	for rows.Next() {
		var m metric.SystemMetric
		if err := rows.Scan(&m.ID, &m.MetricName, &m.MetricValue, &m.Timestamp); err != nil {
			return nil, wrapError(err, "metric", "scan")
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "metric", "list")
	}
	return out, nil
}

func (r postgresMetrics) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM system_metrics`).Scan(&n); err != nil {
		return 0, wrapError(err, "metric", "count")
	}
	return n, nil
}
