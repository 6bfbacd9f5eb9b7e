package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/infrastructure/database/postgres"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/pkg/errors"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

const profileColumns = `id, smiles, ph, mode, model_version, entries, skipped, created_at`

// ProfileRepository stores profile records in the pka_profiles table with the
// entries serialised as JSONB.
type ProfileRepository struct {
	db     queryExecutor
	logger logging.Logger
}

// NewProfileRepository builds a repository over conn.
func NewProfileRepository(conn *postgres.Connection, log logging.Logger) *ProfileRepository {
	return &ProfileRepository{db: conn.DB(), logger: logging.OrNop(log)}
}

// ─────────────────────────────────────────────────────────────────────────────
// Save
// ─────────────────────────────────────────────────────────────────────────────

// Save inserts r. Saving an ID that already exists is a no-op since records
// are immutable once computed.
func (r *ProfileRepository) Save(ctx context.Context, rec *profile.Record) error {
	if rec == nil {
		return errors.NewValidationError(errors.ErrCodeBadRequest, "nil profile record")
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	entries := rec.Entries
	if entries == nil {
		entries = []profile.Entry{}
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode profile entries")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pka_profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.SMILES, rec.PH, rec.Mode, rec.ModelVersion, entriesJSON, rec.Skipped, rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to insert profile", logging.String("id", rec.ID.String()), logging.Err(err))
		return dbError(err, nil, "failed to insert profile")
	}
	r.logger.Debug("profile saved", logging.String("id", rec.ID.String()), logging.Int("entries", len(rec.Entries)))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns the record or profile.ErrNotFound.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*profile.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM pka_profiles WHERE id = $1`, id)
	rec, err := scanProfile(row)
	if err != nil {
		return nil, dbError(err, profile.ErrNotFound.WithDetail(id.String()), "failed to get profile")
	}
	return rec, nil
}

// ListBySMILES returns the newest records for smiles. limit defaults to 20
// and is capped at 100.
func (r *ProfileRepository) ListBySMILES(ctx context.Context, smiles string, limit int) ([]*profile.Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+profileColumns+`
		FROM pka_profiles
		WHERE smiles = $1
		ORDER BY created_at DESC
		LIMIT $2`, smiles, limit)
	if err != nil {
		return nil, dbError(err, nil, "failed to list profiles")
	}
	defer rows.Close()

	out := make([]*profile.Record, 0, limit)
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, dbError(err, nil, "failed to scan profile")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, nil, "failed to iterate profiles")
	}
	return out, nil
}

// DeleteOlderThan removes records created before cutoff and returns how many
// were removed.
func (r *ProfileRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pka_profiles WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, dbError(err, nil, "failed to prune profiles")
	}
	n, _ := res.RowsAffected()
	r.logger.Info("profiles pruned", logging.Int64("rows", n), logging.String("cutoff", cutoff.Format(time.RFC3339)))
	return n, nil
}

func scanProfile(s scanner) (*profile.Record, error) {
	var (
		rec     profile.Record
		entries []byte
	)
	if err := s.Scan(&rec.ID, &rec.SMILES, &rec.PH, &rec.Mode, &rec.ModelVersion, &entries, &rec.Skipped, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		if err := json.Unmarshal(entries, &rec.Entries); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode profile entries")
		}
	}
	return &rec, nil
}

var _ profile.Repository = (*ProfileRepository)(nil)

//Personal.AI order the ending
