package report

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/krishnavp/billflow/internal/models"
	"github.com/krishnavp/billflow/internal/workflow"
)

// reportSchema carries only the columns the projector reads.
const reportSchema = `
	CREATE TABLE bills (
		id TEXT PRIMARY KEY,
		serial_no TEXT NOT NULL,
		vendor_no TEXT NOT NULL,
		region TEXT NOT NULL,
		amount REAL NOT NULL,
		bill_date DATETIME NOT NULL,
		workflow_state TEXT NOT NULL,
		tax_inv_recd_at_site DATETIME,
		regional_date_given DATETIME,
		regional_date_received DATETIME,
		accounts_date_given DATETIME,
		accounts_date_received DATETIME,
		accounts_payment_date DATETIME,
		measurement_date_given DATETIME,
		certification_date_given DATETIME
	);
	CREATE TABLE vendor_master (
		vendor_no TEXT PRIMARY KEY,
		vendor_name TEXT NOT NULL
	);
`

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(reportSchema)
	require.NoError(t, err)
	return db
}

func insertBill(t *testing.T, db *sql.DB, id, vendorNo, region string, amount float64, anchors map[string]time.Time) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO bills (id, serial_no, vendor_no, region, amount, bill_date, workflow_state)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, "SN-"+id, vendorNo, region, amount,
		time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), models.StateRegionalOffice)
	require.NoError(t, err)

	for col, ts := range anchors {
		_, err := db.Exec(`UPDATE bills SET `+col+` = ? WHERE id = ?`, ts, id)
		require.NoError(t, err)
	}
}

func newTestProjector(t *testing.T, db *sql.DB) *Projector {
	return NewProjector(db, nil, workflow.DefaultAccessConfig(), zap.NewNop())
}

func TestOutstandingExcludesPaidBills(t *testing.T) {
	db := openTestDB(t)
	received := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	insertBill(t, db, "unpaid", "V1", "West", 1000, map[string]time.Time{
		"accounts_date_received": received,
	})
	insertBill(t, db, "paid", "V1", "West", 2000, map[string]time.Time{
		"accounts_date_received": received,
		"accounts_payment_date":  received.AddDate(0, 0, 10),
	})
	insertBill(t, db, "not-at-accounts", "V1", "West", 3000, nil)

	report, err := newTestProjector(t, db).Run(context.Background(), ViewOutstanding, Filter{})
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "unpaid", report.Rows[0].BillID)
	assert.Equal(t, 1, report.Count)
	assert.Equal(t, 1000.0, report.TotalAmount)
}

func TestDateBoundsFilterOnAnchor(t *testing.T) {
	db := openTestDB(t)
	insertBill(t, db, "early", "V1", "West", 100, map[string]time.Time{
		"regional_date_given": time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	insertBill(t, db, "late", "V1", "West", 200, map[string]time.Time{
		"regional_date_given": time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})

	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	report, err := newTestProjector(t, db).Run(context.Background(), ViewDispatchedToRegional, Filter{From: &from})
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "late", report.Rows[0].BillID)
}

func TestRegionFilter(t *testing.T) {
	db := openTestDB(t)
	paid := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	insertBill(t, db, "west", "V1", "West", 100, map[string]time.Time{"accounts_payment_date": paid})
	insertBill(t, db, "east", "V1", "East", 200, map[string]time.Time{"accounts_payment_date": paid})

	report, err := newTestProjector(t, db).Run(context.Background(), ViewPaid, Filter{Region: "East"})
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "east", report.Rows[0].BillID)
}

func TestMissingVendorRendersNA(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`INSERT INTO vendor_master (vendor_no, vendor_name) VALUES ('V1', 'Acme Traders')`)
	require.NoError(t, err)

	recd := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	insertBill(t, db, "known", "V1", "West", 100, map[string]time.Time{"tax_inv_recd_at_site": recd})
	insertBill(t, db, "unknown", "V-MISSING", "West", 200, map[string]time.Time{"tax_inv_recd_at_site": recd})

	report, err := newTestProjector(t, db).Run(context.Background(), ViewReceivedAtSite, Filter{})
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	names := map[string]string{}
	for _, row := range report.Rows {
		names[row.BillID] = row.VendorName
	}
	assert.Equal(t, "Acme Traders", names["known"])
	assert.Equal(t, "N/A", names["unknown"])
}

func TestGivenToSurveyorMatchesEitherBranch(t *testing.T) {
	db := openTestDB(t)
	given := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	insertBill(t, db, "measurement", "V1", "West", 100, map[string]time.Time{"measurement_date_given": given})
	insertBill(t, db, "certification", "V1", "West", 200, map[string]time.Time{"certification_date_given": given})
	insertBill(t, db, "neither", "V1", "West", 300, nil)

	report, err := newTestProjector(t, db).Run(context.Background(), ViewGivenToSurveyor, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count)
	assert.Equal(t, 300.0, report.TotalAmount)
}

func TestUnknownViewRejected(t *testing.T) {
	db := openTestDB(t)
	_, err := newTestProjector(t, db).Run(context.Background(), "everything", Filter{})
	assert.Error(t, err)
}

type stubFinder struct {
	gotLevel int
}

func (s *stubFinder) FindAboveLevel(_ context.Context, level int) ([]*models.Bill, error) {
	s.gotLevel = level
	return []*models.Bill{{ID: "b1"}}, nil
}

func TestBillsAboveLevelResolvesRoleLevel(t *testing.T) {
	finder := &stubFinder{}
	p := NewProjector(nil, finder, workflow.DefaultAccessConfig(), zap.NewNop())

	bills, err := p.BillsAboveLevel(context.Background(), workflow.RoleOversightSurveyor)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, 3, finder.gotLevel)

	_, err = p.BillsAboveLevel(context.Background(), "warehouse_clerk")
	assert.Error(t, err)
}
