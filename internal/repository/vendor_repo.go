package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/krishnavp/billflow/internal/models"
	"go.uber.org/zap"
)

// VendorRepository handles vendor master data.
type VendorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVendorRepository creates a new vendor repository.
func NewVendorRepository(db *sql.DB, logger *zap.Logger) *VendorRepository {
	return &VendorRepository{
		db:     db,
		logger: logger,
	}
}

// GetByVendorNo retrieves one vendor master record. Returns (nil, nil)
// when the vendor is unknown; reports substitute "N/A" for missing
// vendors rather than failing.
func (r *VendorRepository) GetByVendorNo(ctx context.Context, vendorNo string) (*models.VendorMaster, error) {
	query := `
		SELECT vendor_no, vendor_name, pan, gst_number, compliance_status, pan_status
		FROM vendor_master
		WHERE vendor_no = ?
	`

	var v models.VendorMaster
	err := r.db.QueryRowContext(ctx, query, vendorNo).Scan(
		&v.VendorNo, &v.VendorName, &v.PAN, &v.GSTNumber, &v.ComplianceStatus, &v.PANStatus,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get vendor", zap.String("vendor_no", vendorNo), zap.Error(err))
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return &v, nil
}

// Upsert inserts or replaces a vendor master record.
func (r *VendorRepository) Upsert(ctx context.Context, v *models.VendorMaster) error {
	query := `
		INSERT INTO vendor_master (vendor_no, vendor_name, pan, gst_number, compliance_status, pan_status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(vendor_no) DO UPDATE SET
			vendor_name = excluded.vendor_name,
			pan = excluded.pan,
			gst_number = excluded.gst_number,
			compliance_status = excluded.compliance_status,
			pan_status = excluded.pan_status
	`

	_, err := r.db.ExecContext(ctx, query,
		v.VendorNo, v.VendorName, v.PAN, v.GSTNumber, v.ComplianceStatus, v.PANStatus,
	)
	if err != nil {
		r.logger.Error("Failed to upsert vendor", zap.String("vendor_no", v.VendorNo), zap.Error(err))
		return fmt.Errorf("failed to upsert vendor: %w", err)
	}
	return nil
}
