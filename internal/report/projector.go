package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/krishnavp/billflow/internal/models"
	"github.com/krishnavp/billflow/internal/workflow"
	"go.uber.org/zap"
)

// View names accepted by Run.
const (
	ViewOutstanding          = "outstanding"
	ViewReceivedAtSite       = "received_at_site"
	ViewReceivedAtRegional   = "received_at_regional"
	ViewDispatchedToRegional = "dispatched_to_regional"
	ViewGivenToAccounts      = "given_to_accounts"
	ViewPaid                 = "paid"
	ViewGivenToSurveyor      = "given_to_surveyor"
)

// view is one report definition: an anchor date expression that must be
// non-null for a bill to appear, plus an optional extra predicate.
type view struct {
	anchor string
	extra  string
}

var views = map[string]view{
	// Received by accounts but not yet paid.
	ViewOutstanding: {anchor: "accounts_date_received", extra: "accounts_payment_date IS NULL"},
	// Tax invoice received at site.
	ViewReceivedAtSite: {anchor: "tax_inv_recd_at_site"},
	// At the regional office, not yet handed to accounts.
	ViewReceivedAtRegional: {anchor: "regional_date_received", extra: "accounts_date_received IS NULL"},
	// Dispatched from site to the regional office.
	ViewDispatchedToRegional: {anchor: "regional_date_given"},
	ViewGivenToAccounts:      {anchor: "accounts_date_given"},
	ViewPaid:                 {anchor: "accounts_payment_date"},
	// Handed to either surveyor branch.
	ViewGivenToSurveyor: {anchor: "COALESCE(measurement_date_given, certification_date_given)"},
}

// Filter bounds a report by anchor date and optionally by region.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Region string
}

// Row is one bill in a report view. VendorName is "N/A" when the vendor
// is missing from the master data.
type Row struct {
	BillID     string    `json:"billId"`
	SerialNo   string    `json:"serialNo"`
	VendorNo   string    `json:"vendorNo"`
	VendorName string    `json:"vendorName"`
	Region     string    `json:"region"`
	Amount     float64   `json:"amount"`
	BillDate   time.Time `json:"billDate"`
	Date       time.Time `json:"date"`
	State      string    `json:"state"`
}

// Report is a view result with count and amount aggregates.
type Report struct {
	View        string  `json:"view"`
	Rows        []Row   `json:"rows"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

// BillFinder is the bill lookup the above-level query needs.
type BillFinder interface {
	FindAboveLevel(ctx context.Context, level int) ([]*models.Bill, error)
}

// Projector derives report views from the bill snapshot table. It reads
// only; all mutation goes through the workflow engine.
type Projector struct {
	db     *sql.DB
	bills  BillFinder
	access workflow.AccessConfig
	logger *zap.Logger
}

// NewProjector creates a report projector.
func NewProjector(db *sql.DB, bills BillFinder, access workflow.AccessConfig, logger *zap.Logger) *Projector {
	return &Projector{
		db:     db,
		bills:  bills,
		access: access,
		logger: logger,
	}
}

// Run executes a named report view under the given filter.
func (p *Projector) Run(ctx context.Context, name string, f Filter) (*Report, error) {
	v, ok := views[name]
	if !ok {
		return nil, fmt.Errorf("unknown report view %q", name)
	}

	query := `
		SELECT b.id, b.serial_no, b.vendor_no, COALESCE(v.vendor_name, 'N/A'),
			b.region, b.amount, b.bill_date, ` + v.anchor + `, b.workflow_state
		FROM bills b
		LEFT JOIN vendor_master v ON v.vendor_no = b.vendor_no
		WHERE ` + v.anchor + ` IS NOT NULL`

	var args []interface{}
	if v.extra != "" {
		query += " AND " + v.extra
	}
	if f.From != nil {
		query += " AND " + v.anchor + " >= ?"
		args = append(args, *f.From)
	}
	if f.To != nil {
		query += " AND " + v.anchor + " <= ?"
		args = append(args, *f.To)
	}
	if f.Region != "" {
		query += " AND b.region = ?"
		args = append(args, f.Region)
	}
	query += " ORDER BY " + v.anchor + " ASC"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		p.logger.Error("Failed to run report", zap.String("view", name), zap.Error(err))
		return nil, fmt.Errorf("failed to run report %s: %w", name, err)
	}
	defer rows.Close()

	report := &Report{View: name, Rows: []Row{}}
	for rows.Next() {
		var row Row
		if err := rows.Scan(
			&row.BillID, &row.SerialNo, &row.VendorNo, &row.VendorName,
			&row.Region, &row.Amount, &row.BillDate, &row.Date, &row.State,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		report.Rows = append(report.Rows, row)
		report.TotalAmount += row.Amount
	}
	report.Count = len(report.Rows)
	return report, rows.Err()
}

// BillsAboveLevel returns bills whose furthest progress passed the desk
// of the given role.
func (p *Projector) BillsAboveLevel(ctx context.Context, role string) ([]*models.Bill, error) {
	level, ok := p.access.LevelForRole(role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	return p.bills.FindAboveLevel(ctx, level)
}

// Views lists the available report view names.
func Views() []string {
	return []string{
		ViewOutstanding,
		ViewReceivedAtSite,
		ViewReceivedAtRegional,
		ViewDispatchedToRegional,
		ViewGivenToAccounts,
		ViewPaid,
		ViewGivenToSurveyor,
	}
}
