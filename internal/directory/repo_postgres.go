package directory

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists extensions via database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const extensionColumns = `
	id, tenant_id, number, user_id, display_name, COALESCE(contact_number, ''),
	COALESCE(forwarding_number, ''), voicemail_enabled, status,
	created_at, updated_at`

func scanExtension(row *sql.Row) (Extension, bool, error) {
	var e Extension
	err := row.Scan(
		&e.ID, &e.TenantID, &e.Number, &e.UserID, &e.DisplayName, &e.ContactNumber,
		&e.ForwardingNumber, &e.VoicemailEnabled, &e.Status,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Extension{}, false, nil
	}
	if err != nil {
		return Extension{}, false, err
	}
	return e, true, nil
}

func (r *PostgresRepo) FindByNumber(ctx context.Context, tenantID, number string) (Extension, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+extensionColumns+` FROM extensions WHERE tenant_id = $1 AND number = $2`,
		tenantID, number)
	return scanExtension(row)
}

func (r *PostgresRepo) FindByID(ctx context.Context, tenantID, id string) (Extension, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+extensionColumns+` FROM extensions WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	return scanExtension(row)
}

func (r *PostgresRepo) ListForwardingRules(ctx context.Context, tenantID, extensionID string) ([]ForwardingRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, extension_id, trigger, destination,
		        COALESCE(ring_count, 0), enabled, created_at, updated_at
		   FROM forwarding_rules
		  WHERE tenant_id = $1 AND extension_id = $2
		  ORDER BY created_at, id`,
		tenantID, extensionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ForwardingRule
	for rows.Next() {
		var fr ForwardingRule
		if err := rows.Scan(
			&fr.ID, &fr.TenantID, &fr.ExtensionID, &fr.Trigger, &fr.Destination,
			&fr.RingCount, &fr.Enabled, &fr.CreatedAt, &fr.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}
