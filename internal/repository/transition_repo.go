package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/krishnavp/billflow/internal/models"
	"go.uber.org/zap"
)

// TransitionRepository handles the append-only bill transition log.
type TransitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTransitionRepository creates a new transition repository.
func NewTransitionRepository(db *sql.DB, logger *zap.Logger) *TransitionRepository {
	return &TransitionRepository{
		db:     db,
		logger: logger,
	}
}

const transitionColumns = `
	id, bill_id,
	from_user_id, from_user_name, from_user_role,
	to_user_id, to_user_name, to_user_role,
	action, remarks, duration_ms, state, created_at`

// Append inserts a transition record. Records are never updated or
// deleted.
func (r *TransitionRepository) Append(ctx context.Context, rec *models.TransitionRecord) error {
	query := `
		INSERT INTO bill_transitions (
			bill_id,
			from_user_id, from_user_name, from_user_role,
			to_user_id, to_user_name, to_user_role,
			action, remarks, duration_ms, state, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		rec.BillID,
		rec.FromUser.ID, rec.FromUser.Name, rec.FromUser.Role,
		rec.ToUser.ID, rec.ToUser.Name, rec.ToUser.Role,
		rec.Action,
		rec.Remarks,
		rec.Duration.Milliseconds(),
		rec.State,
		rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append transition", zap.String("bill_id", rec.BillID), zap.Error(err))
		return fmt.Errorf("failed to append transition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListByBill returns all transition records for a bill, oldest first.
func (r *TransitionRepository) ListByBill(ctx context.Context, billID string) ([]*models.TransitionRecord, error) {
	query := `SELECT` + transitionColumns + ` FROM bill_transitions WHERE bill_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, billID)
	if err != nil {
		r.logger.Error("Failed to list transitions", zap.String("bill_id", billID), zap.Error(err))
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var recs []*models.TransitionRecord
	for rows.Next() {
		rec, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LatestByBill returns the most recent transition record for a bill, or
// (nil, nil) when the bill has no records.
func (r *TransitionRepository) LatestByBill(ctx context.Context, billID string) (*models.TransitionRecord, error) {
	query := `SELECT` + transitionColumns + ` FROM bill_transitions WHERE bill_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`

	rec, err := scanTransition(r.db.QueryRowContext(ctx, query, billID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get latest transition", zap.String("bill_id", billID), zap.Error(err))
		return nil, fmt.Errorf("failed to get latest transition: %w", err)
	}
	return rec, nil
}

func scanTransition(s scanner) (*models.TransitionRecord, error) {
	var rec models.TransitionRecord
	var durationMS int64

	err := s.Scan(
		&rec.ID, &rec.BillID,
		&rec.FromUser.ID, &rec.FromUser.Name, &rec.FromUser.Role,
		&rec.ToUser.ID, &rec.ToUser.Name, &rec.ToUser.Role,
		&rec.Action, &rec.Remarks, &durationMS, &rec.State, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return &rec, nil
}
