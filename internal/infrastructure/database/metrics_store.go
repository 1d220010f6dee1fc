package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/telemetry"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

var _ fraud.MetricsStore = (*MetricsStore)(nil)

// Query limits for the read-only views the checks depend on
const (
	recentTransactionLimit = 100
	usualLocationLimit     = 10
	usualLocationMinSeen   = 2
	deviceHistoryLimit     = 20
)

// MetricsStore answers the fraud checks' read queries from PostgreSQL.
// Every query is scoped by tenant and user.
type MetricsStore struct {
	db Querier
}

// NewMetricsStore creates a PostgreSQL metrics store
func NewMetricsStore(db Querier) *MetricsStore {
	return &MetricsStore{db: db}
}

// GetUserProfile returns nil without error when the user is unknown
func (s *MetricsStore) GetUserProfile(ctx context.Context, tenantID, userID uuid.UUID) (*risk.PaymentContext, error) {
	ctx, span := telemetry.StartDatabaseSpan(ctx, "select", "users")
	defer span.End()

	const query = `
		SELECT id, email, name, role
		FROM users
		WHERE tenant_id = $1 AND id = $2
	`

	var pc risk.PaymentContext
	err := s.db.QueryRow(ctx, query, tenantID, userID).Scan(&pc.UserID, &pc.Email, &pc.Name, &pc.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		telemetry.WithSpanError(span, err)
		return nil, fmt.Errorf("failed to load user profile: %w", err)
	}
	return &pc, nil
}

// TransactionTotals counts and sums transactions created at or after since
func (s *MetricsStore) TransactionTotals(ctx context.Context, tenantID, userID uuid.UUID, since time.Time) (risk.TransactionTotals, error) {
	ctx, span := telemetry.StartDatabaseSpan(ctx, "select", "transactions")
	defer span.End()

	const query = `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE tenant_id = $1 AND user_id = $2 AND created_at >= $3
	`

	var totals risk.TransactionTotals
	var amount decimal.Decimal
	if err := s.db.QueryRow(ctx, query, tenantID, userID, since).Scan(&totals.Count, &amount); err != nil {
		telemetry.WithSpanError(span, err)
		return risk.TransactionTotals{}, fmt.Errorf("failed to total transactions: %w", err)
	}
	totals.Amount = amount
	return totals, nil
}

// RecentTransactions returns transactions since the given time, most recent first
func (s *MetricsStore) RecentTransactions(ctx context.Context, tenantID, userID uuid.UUID, since time.Time) ([]risk.TransactionRecord, error) {
	ctx, span := telemetry.StartDatabaseSpan(ctx, "select", "transactions")
	defer span.End()

	const query = `
		SELECT id, amount, payment_method, COALESCE(country, ''), created_at
		FROM transactions
		WHERE tenant_id = $1 AND user_id = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4
	`

	rows, err := s.db.Query(ctx, query, tenantID, userID, since, recentTransactionLimit)
	if err != nil {
		telemetry.WithSpanError(span, err)
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	defer rows.Close()

	records := make([]risk.TransactionRecord, 0)
	for rows.Next() {
		var rec risk.TransactionRecord
		var id uuid.UUID
		if err := rows.Scan(&id, &rec.Amount, &rec.PaymentMethod, &rec.Country, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		rec.ID = id.String()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		telemetry.WithSpanError(span, err)
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return records, nil
}

// UsualLocations returns the most frequent locations seen at least twice
func (s *MetricsStore) UsualLocations(ctx context.Context, tenantID, userID uuid.UUID) ([]risk.KnownLocation, error) {
	ctx, span := telemetry.StartDatabaseSpan(ctx, "select", "transactions")
	defer span.End()

	const query = `
		SELECT latitude, longitude, COALESCE(country, ''), COALESCE(city, ''), COUNT(*) AS occurrences
		FROM transactions
		WHERE tenant_id = $1 AND user_id = $2
			AND latitude IS NOT NULL AND longitude IS NOT NULL
		GROUP BY latitude, longitude, country, city
		HAVING COUNT(*) >= $3
		ORDER BY occurrences DESC
		LIMIT $4
	`

	rows, err := s.db.Query(ctx, query, tenantID, userID, usualLocationMinSeen, usualLocationLimit)
	if err != nil {
		telemetry.WithSpanError(span, err)
		return nil, fmt.Errorf("failed to query usual locations: %w", err)
	}
	defer rows.Close()

	locations := make([]risk.KnownLocation, 0)
	for rows.Next() {
		var loc risk.KnownLocation
		if err := rows.Scan(&loc.Latitude, &loc.Longitude, &loc.Country, &loc.City, &loc.Occurrences); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		telemetry.WithSpanError(span, err)
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return locations, nil
}

// DeviceHistory returns the most recently seen devices
func (s *MetricsStore) DeviceHistory(ctx context.Context, tenantID, userID uuid.UUID) ([]risk.KnownDevice, error) {
	ctx, span := telemetry.StartDatabaseSpan(ctx, "select", "user_devices")
	defer span.End()

	const query = `
		SELECT fingerprint, user_agent, trusted, last_seen
		FROM user_devices
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY last_seen DESC
		LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, tenantID, userID, deviceHistoryLimit)
	if err != nil {
		telemetry.WithSpanError(span, err)
		return nil, fmt.Errorf("failed to query device history: %w", err)
	}
	defer rows.Close()

	devices := make([]risk.KnownDevice, 0)
	for rows.Next() {
		var d risk.KnownDevice
		if err := rows.Scan(&d.Fingerprint, &d.UserAgent, &d.Trusted, &d.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		telemetry.WithSpanError(span, err)
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return devices, nil
}

// IsBlacklisted reports whether an active entry of listType matches value
func (s *MetricsStore) IsBlacklisted(ctx context.Context, listType risk.BlacklistType, value string) (bool, error) {
	ctx, span := telemetry.StartDatabaseSpan(ctx, "select", "blacklist_entries")
	defer span.End()

	const query = `
		SELECT EXISTS (
			SELECT 1 FROM blacklist_entries
			WHERE list_type = $1 AND value = $2 AND active
		)
	`

	var listed bool
	if err := s.db.QueryRow(ctx, query, string(listType), value).Scan(&listed); err != nil {
		telemetry.WithSpanError(span, err)
		return false, fmt.Errorf("failed to check %s blacklist: %w", listType, err)
	}
	return listed, nil
}
