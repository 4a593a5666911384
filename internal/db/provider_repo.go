package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lawncare/internal/types"
)

// ProviderConfigRepository provides data access for provider_configs.
// Credentials live in a JSONB column written through
// ProviderCredentials.Value, which stores the unmasked secrets.
type ProviderConfigRepository struct {
	db DBTX
}

func NewProviderConfigRepository(db DBTX) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db}
}

const providerColumns = `id, name, channel, type, credentials, from_email, from_name,
	from_number, is_default, enabled, created_at, updated_at`

func scanProviderConfig(row pgx.Row) (*types.ProviderConfig, error) {
	var c types.ProviderConfig
	var fromEmail, fromName, fromNumber *string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Channel,
		&c.Type,
		&c.Credentials,
		&fromEmail,
		&fromName,
		&fromNumber,
		&c.IsDefault,
		&c.Enabled,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.FromEmail = deref(fromEmail)
	c.FromName = deref(fromName)
	c.FromNumber = deref(fromNumber)
	return &c, nil
}

func providerNotFound(id string) error {
	return types.NewAppError(types.ErrCodeNotFoundProviderConfig, fmt.Sprintf("provider config %s not found", id), nil)
}

// ListByChannel returns the channel's configs, oldest first.
func (r *ProviderConfigRepository) ListByChannel(ctx context.Context, ch types.Channel) ([]types.ProviderConfig, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+providerColumns+` FROM provider_configs
		 WHERE channel = $1
		 ORDER BY created_at, id`,
		string(ch),
	)
	if err != nil {
		return nil, dbErr("failed to list provider configs", err)
	}
	defer rows.Close()

	out := []types.ProviderConfig{}
	for rows.Next() {
		c, err := scanProviderConfig(rows)
		if err != nil {
			return nil, dbErr("failed to scan provider config row", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("error iterating provider config rows", err)
	}
	return out, nil
}

func (r *ProviderConfigRepository) Get(ctx context.Context, id string) (*types.ProviderConfig, error) {
	c, err := scanProviderConfig(r.db.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM provider_configs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, providerNotFound(id)
		}
		return nil, dbErr("failed to retrieve provider config", err)
	}
	return c, nil
}

// Upsert saves cfg. When cfg.IsDefault is set the sibling defaults on the
// same channel are cleared by the same statement.
func (r *ProviderConfigRepository) Upsert(ctx context.Context, cfg *types.ProviderConfig) error {
	_, err := r.db.Exec(ctx,
		`WITH cleared AS (
		   UPDATE provider_configs SET is_default = FALSE, updated_at = NOW()
		   WHERE $9 AND channel = $3 AND id <> $1 AND is_default
		 )
		 INSERT INTO provider_configs
		 (id, name, channel, type, credentials, from_email, from_name, from_number,
		  is_default, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()), COALESCE($12, NOW()))
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   channel = EXCLUDED.channel,
		   type = EXCLUDED.type,
		   credentials = EXCLUDED.credentials,
		   from_email = EXCLUDED.from_email,
		   from_name = EXCLUDED.from_name,
		   from_number = EXCLUDED.from_number,
		   is_default = EXCLUDED.is_default,
		   enabled = EXCLUDED.enabled,
		   updated_at = EXCLUDED.updated_at`,
		cfg.ID,
		cfg.Name,
		string(cfg.Channel),
		string(cfg.Type),
		cfg.Credentials,
		nilIfEmpty(cfg.FromEmail),
		nilIfEmpty(cfg.FromName),
		nilIfEmpty(cfg.FromNumber),
		cfg.IsDefault,
		cfg.Enabled,
		nilIfZeroTime(cfg.CreatedAt),
		nilIfZeroTime(cfg.UpdatedAt),
	)
	if err != nil {
		return dbErr("failed to save provider config", err)
	}
	return nil
}

// SetDefault marks id as the channel default and clears its siblings. It
// returns not-found when id does not exist on that channel.
func (r *ProviderConfigRepository) SetDefault(ctx context.Context, ch types.Channel, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE provider_configs SET is_default = (id = $2), updated_at = NOW()
		 WHERE channel = $1
		   AND EXISTS (SELECT 1 FROM provider_configs WHERE id = $2 AND channel = $1)`,
		string(ch), id,
	)
	if err != nil {
		return dbErr("failed to set default provider", err)
	}
	if tag.RowsAffected() == 0 {
		return providerNotFound(id)
	}
	return nil
}

var _ types.ProviderConfigRepository = (*ProviderConfigRepository)(nil)
