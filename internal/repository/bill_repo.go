package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/krishnavp/billflow/internal/models"
	"github.com/krishnavp/billflow/internal/workflow"
	"go.uber.org/zap"
)

// fieldColumns maps the logical dotted field names used by the rule table
// and the team allow-lists onto bill columns. A write naming a field
// outside this map is a programming error and fails loudly.
var fieldColumns = map[string]string{
	workflow.FieldQualityEngDateGiven: "quality_eng_date_given",
	workflow.FieldQualityEngName:      "quality_eng_name",

	workflow.FieldMeasurementDateGiven: "measurement_date_given",
	workflow.FieldMeasurementName:      "measurement_name",

	workflow.FieldCertificationDateGiven: "certification_date_given",
	workflow.FieldCertificationName:      "certification_name",

	workflow.FieldSiteEngineerDateGiven: "site_engineer_date_given",
	workflow.FieldSiteEngineerName:      "site_engineer_name",

	workflow.FieldArchitectDateGiven: "architect_date_given",
	workflow.FieldArchitectName:      "architect_name",

	workflow.FieldSiteInchargeDateGiven: "site_incharge_date_given",
	workflow.FieldSiteInchargeName:      "site_incharge_name",

	workflow.FieldSiteDispatchDateGiven: "site_dispatch_date_given",
	workflow.FieldSiteDispatchName:      "site_dispatch_name",

	workflow.FieldGoodsReceiptDateGiven: "goods_receipt_date_given",
	workflow.FieldGoodsReceiptNo:        "goods_receipt_no",
	workflow.FieldGoodsReceiptAmount:    "goods_receipt_amount",
	workflow.FieldGoodsReceiptDate:      "goods_receipt_date",
	workflow.FieldInvReturnedToSite:     "inv_returned_to_site",

	workflow.FieldRegionalDateGiven:         "regional_date_given",
	workflow.FieldRegionalName:              "regional_name",
	workflow.FieldRegionalDateReceived:      "regional_date_received",
	workflow.FieldRegionalReceivedBy:        "regional_received_by",
	workflow.FieldRegionalRetFromSurveyor:   "regional_date_returned_from_surveyor",
	workflow.FieldRegionalRecdFromIT:        "regional_date_received_from_it",
	workflow.FieldRegionalRetFromSettlement: "regional_date_returned_from_settlement",
	workflow.FieldRegionalRetFromCommittee:  "regional_date_returned_from_committee",

	workflow.FieldOversightDateGiven: "oversight_date_given",
	workflow.FieldOversightName:      "oversight_name",

	workflow.FieldITDeptDateGiven: "it_dept_date_given",
	workflow.FieldITDeptName:      "it_dept_name",

	workflow.FieldSettlementDateGiven: "settlement_date_given",
	workflow.FieldSettlementName:      "settlement_name",
	workflow.FieldSettlementNo:        "settlement_no",
	workflow.FieldSettlementAmount:    "settlement_amount",
	workflow.FieldSettlementDate:      "settlement_date",

	workflow.FieldCommitteeDateGiven:    "committee_date_given",
	workflow.FieldCommitteeDateReceived: "committee_date_received",
	workflow.FieldCommitteeRemarks:      "committee_remarks",

	workflow.FieldAccountsDateGiven:        "accounts_date_given",
	workflow.FieldAccountsGivenBy:          "accounts_given_by",
	workflow.FieldAccountsRemarks:          "accounts_remarks",
	workflow.FieldAccountsDateReceived:     "accounts_date_received",
	workflow.FieldAccountsBookingDate:      "accounts_booking_date",
	workflow.FieldAccountsPaymentInstrDate: "accounts_payment_instr_date",
	workflow.FieldAccountsPaymentDate:      "accounts_payment_date",
	workflow.FieldAccountsPaymentAmount:    "accounts_payment_amount",

	workflow.FieldMeasurementCheckDateGiven: "measurement_check_date_given",
	workflow.FieldVendorFinalInvName:        "vendor_final_inv_name",
	workflow.FieldVendorFinalInvDateGiven:   "vendor_final_inv_date",

	workflow.FieldCertReturnDate:         "cert_return_date",
	workflow.FieldCertReturnAmount:       "cert_return_amount",
	workflow.FieldCertReturnDateReturned: "cert_return_date_returned",

	workflow.FieldSiteStatus: "site_status",
}

// ColumnForField resolves a logical field name to its bill column.
func ColumnForField(field string) (string, bool) {
	col, ok := fieldColumns[field]
	return col, ok
}

const billColumns = `
	id, serial_no, prev_serial_no,
	vendor_no, amount, currency, nature_of_work, region,
	bill_date, tax_inv_recd_at_site,
	position, max_position, site_status, workflow_state,
	quality_eng_date_given, quality_eng_name,
	measurement_date_given, measurement_name,
	certification_date_given, certification_name,
	site_engineer_date_given, site_engineer_name,
	architect_date_given, architect_name,
	site_incharge_date_given, site_incharge_name,
	site_dispatch_date_given, site_dispatch_name,
	goods_receipt_date_given, goods_receipt_no, goods_receipt_amount, goods_receipt_date,
	inv_returned_to_site,
	regional_date_given, regional_name, regional_date_received, regional_received_by,
	regional_date_returned_from_surveyor, regional_date_received_from_it,
	regional_date_returned_from_settlement, regional_date_returned_from_committee,
	oversight_date_given, oversight_name,
	it_dept_date_given, it_dept_name,
	settlement_date_given, settlement_name, settlement_no, settlement_amount, settlement_date,
	committee_date_given, committee_date_received, committee_remarks,
	accounts_date_given, accounts_given_by, accounts_remarks, accounts_date_received,
	accounts_booking_date, accounts_payment_instr_date, accounts_payment_date, accounts_payment_amount,
	measurement_check_date_given, vendor_final_inv_name, vendor_final_inv_date,
	cert_return_date, cert_return_amount, cert_return_date_returned,
	last_updated, created_at`

// BillRepository handles bill database operations.
type BillRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBillRepository creates a new bill repository.
func NewBillRepository(db *sql.DB, logger *zap.Logger) *BillRepository {
	return &BillRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new bill. Stage sub-blocks start empty; only intake
// fields are written.
func (r *BillRepository) Create(ctx context.Context, bill *models.Bill) error {
	query := `
		INSERT INTO bills (
			id, serial_no, prev_serial_no, vendor_no, amount, currency,
			nature_of_work, region, bill_date, tax_inv_recd_at_site,
			position, max_position, site_status, workflow_state,
			last_updated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		bill.ID,
		bill.SerialNo,
		bill.PrevSerialNo,
		bill.VendorNo,
		bill.Amount,
		bill.Currency,
		bill.NatureOfWork,
		bill.Region,
		bill.BillDate,
		bill.TaxInvRecdAtSite,
		bill.Position,
		bill.MaxPosition,
		bill.SiteStatus,
		bill.WorkflowState,
		bill.LastUpdated,
		bill.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create bill", zap.String("id", bill.ID), zap.Error(err))
		return fmt.Errorf("failed to create bill: %w", err)
	}

	return nil
}

// GetByID retrieves a bill by its id. Returns (nil, nil) when no bill
// exists.
func (r *BillRepository) GetByID(ctx context.Context, id string) (*models.Bill, error) {
	query := `SELECT` + billColumns + ` FROM bills WHERE id = ?`

	bill, err := scanBill(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get bill", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return bill, nil
}

// GetBySerialNo retrieves a bill by serial number. Returns (nil, nil) when
// no bill exists.
func (r *BillRepository) GetBySerialNo(ctx context.Context, serialNo string) (*models.Bill, error) {
	query := `SELECT` + billColumns + ` FROM bills WHERE serial_no = ?`

	bill, err := scanBill(r.db.QueryRowContext(ctx, query, serialNo))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get bill by serial", zap.String("serial_no", serialNo), zap.Error(err))
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return bill, nil
}

// ApplyTransition persists one transition outcome as a single UPDATE:
// the stage-field writes plus the position counters and state snapshot.
func (r *BillRepository) ApplyTransition(ctx context.Context, id string, writes []workflow.FieldWrite, position, maxPosition int, state string, updatedAt time.Time) error {
	sets := make([]string, 0, len(writes)+4)
	args := make([]interface{}, 0, len(writes)+5)

	for _, w := range writes {
		col, ok := fieldColumns[w.Field]
		if !ok {
			return fmt.Errorf("unknown bill field %q", w.Field)
		}
		sets = append(sets, col+" = ?")
		args = append(args, w.Value)
	}
	sets = append(sets,
		"position = ?",
		"max_position = ?",
		"workflow_state = ?",
		"last_updated = ?")
	args = append(args, position, maxPosition, state, updatedAt, id)

	query := "UPDATE bills SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to apply transition", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to apply transition: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("bill %s not found", id)
	}
	return nil
}

// UpdateField sets a single stage field by logical name, used by the
// team-scoped direct field updates.
func (r *BillRepository) UpdateField(ctx context.Context, id, field string, value interface{}, updatedAt time.Time) error {
	col, ok := fieldColumns[field]
	if !ok {
		return fmt.Errorf("unknown bill field %q", field)
	}

	query := "UPDATE bills SET " + col + " = ?, last_updated = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, value, updatedAt, id)
	if err != nil {
		r.logger.Error("Failed to update bill field",
			zap.String("id", id), zap.String("field", field), zap.Error(err))
		return fmt.Errorf("failed to update bill field: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("bill %s not found", id)
	}
	return nil
}

// SetFields writes several stage fields in one UPDATE, by logical name.
func (r *BillRepository) SetFields(ctx context.Context, id string, writes []workflow.FieldWrite, updatedAt time.Time) error {
	sets := make([]string, 0, len(writes)+1)
	args := make([]interface{}, 0, len(writes)+2)

	for _, w := range writes {
		col, ok := fieldColumns[w.Field]
		if !ok {
			return fmt.Errorf("unknown bill field %q", w.Field)
		}
		sets = append(sets, col+" = ?")
		args = append(args, w.Value)
	}
	sets = append(sets, "last_updated = ?")
	args = append(args, updatedAt, id)

	query := "UPDATE bills SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to set bill fields", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to set bill fields: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("bill %s not found", id)
	}
	return nil
}

// UpdateBillDate corrects the bill date, used by fiscal-year correction.
func (r *BillRepository) UpdateBillDate(ctx context.Context, id string, billDate time.Time) error {
	query := `UPDATE bills SET bill_date = ?, last_updated = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, billDate, id)
	if err != nil {
		r.logger.Error("Failed to update bill date", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update bill date: %w", err)
	}
	return nil
}

// UpdateSerial replaces the serial number, archiving the previous one.
func (r *BillRepository) UpdateSerial(ctx context.Context, id, newSerial, prevSerial string) error {
	query := `UPDATE bills SET serial_no = ?, prev_serial_no = ?, last_updated = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, newSerial, prevSerial, id)
	if err != nil {
		r.logger.Error("Failed to update serial", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update serial: %w", err)
	}
	return nil
}

// MaxSerialForPrefix returns the highest serial number starting with the
// given fiscal-year prefix, or "" when none exists.
func (r *BillRepository) MaxSerialForPrefix(ctx context.Context, prefix string) (string, error) {
	query := `SELECT COALESCE(MAX(serial_no), '') FROM bills WHERE serial_no LIKE ?`

	var serial string
	if err := r.db.QueryRowContext(ctx, query, prefix+"%").Scan(&serial); err != nil {
		r.logger.Error("Failed to query max serial", zap.String("prefix", prefix), zap.Error(err))
		return "", fmt.Errorf("failed to query max serial: %w", err)
	}
	return serial, nil
}

// CountByState groups bills by named workflow state.
func (r *BillRepository) CountByState(ctx context.Context) (map[string]int, error) {
	query := `SELECT workflow_state, COUNT(*) FROM bills GROUP BY workflow_state`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to count bills by state", zap.Error(err))
		return nil, fmt.Errorf("failed to count bills by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

// FindStuck returns non-terminal bills not updated since the given cutoff.
func (r *BillRepository) FindStuck(ctx context.Context, before time.Time, excludeStates []string) ([]*models.Bill, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(excludeStates)), ",")
	query := `SELECT` + billColumns + ` FROM bills
		WHERE last_updated < ? AND workflow_state NOT IN (` + placeholders + `)
		ORDER BY last_updated ASC`

	args := make([]interface{}, 0, len(excludeStates)+1)
	args = append(args, before)
	for _, s := range excludeStates {
		args = append(args, s)
	}

	return r.queryBills(ctx, query, args...)
}

// FindAboveLevel returns bills whose furthest progress exceeds the given
// workflow level, newest first.
func (r *BillRepository) FindAboveLevel(ctx context.Context, level int) ([]*models.Bill, error) {
	query := `SELECT` + billColumns + ` FROM bills WHERE max_position > ? ORDER BY last_updated DESC`
	return r.queryBills(ctx, query, level)
}

// List retrieves bills with pagination, newest first.
func (r *BillRepository) List(ctx context.Context, limit, offset int) ([]*models.Bill, error) {
	query := `SELECT` + billColumns + ` FROM bills ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return r.queryBills(ctx, query, limit, offset)
}

func (r *BillRepository) queryBills(ctx context.Context, query string, args ...interface{}) ([]*models.Bill, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query bills", zap.Error(err))
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	var bills []*models.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBill(s scanner) (*models.Bill, error) {
	var b models.Bill
	var (
		prevSerial       sql.NullString
		taxInvRecd       sql.NullTime
		qeDate, meDate   sql.NullTime
		qeName, meName   sql.NullString
		ceDate, seDate   sql.NullTime
		ceName, seName   sql.NullString
		arDate, siDate   sql.NullTime
		arName, siName   sql.NullString
		sdDate           sql.NullTime
		sdName           sql.NullString
		grDateGiven      sql.NullTime
		grNo             sql.NullString
		grAmount         sql.NullFloat64
		grDate           sql.NullTime
		invReturned      sql.NullTime
		roDateGiven      sql.NullTime
		roName           sql.NullString
		roDateReceived   sql.NullTime
		roReceivedBy     sql.NullString
		roRetSurveyor    sql.NullTime
		roRecdIT         sql.NullTime
		roRetSettlement  sql.NullTime
		roRetCommittee   sql.NullTime
		ovDate           sql.NullTime
		ovName           sql.NullString
		itDate           sql.NullTime
		itName           sql.NullString
		stDateGiven      sql.NullTime
		stName, stNo     sql.NullString
		stAmount         sql.NullFloat64
		stDate           sql.NullTime
		cmDateGiven      sql.NullTime
		cmDateReceived   sql.NullTime
		cmRemarks        sql.NullString
		acDateGiven      sql.NullTime
		acGivenBy        sql.NullString
		acRemarks        sql.NullString
		acDateReceived   sql.NullTime
		acBookingDate    sql.NullTime
		acPayInstrDate   sql.NullTime
		acPaymentDate    sql.NullTime
		acPaymentAmount  sql.NullFloat64
		mcDateGiven      sql.NullTime
		vendorFinalName  sql.NullString
		vendorFinalDate  sql.NullTime
		crDate           sql.NullTime
		crAmount         sql.NullFloat64
		crDateReturned   sql.NullTime
	)

	err := s.Scan(
		&b.ID, &b.SerialNo, &prevSerial,
		&b.VendorNo, &b.Amount, &b.Currency, &b.NatureOfWork, &b.Region,
		&b.BillDate, &taxInvRecd,
		&b.Position, &b.MaxPosition, &b.SiteStatus, &b.WorkflowState,
		&qeDate, &qeName,
		&meDate, &meName,
		&ceDate, &ceName,
		&seDate, &seName,
		&arDate, &arName,
		&siDate, &siName,
		&sdDate, &sdName,
		&grDateGiven, &grNo, &grAmount, &grDate,
		&invReturned,
		&roDateGiven, &roName, &roDateReceived, &roReceivedBy,
		&roRetSurveyor, &roRecdIT, &roRetSettlement, &roRetCommittee,
		&ovDate, &ovName,
		&itDate, &itName,
		&stDateGiven, &stName, &stNo, &stAmount, &stDate,
		&cmDateGiven, &cmDateReceived, &cmRemarks,
		&acDateGiven, &acGivenBy, &acRemarks, &acDateReceived,
		&acBookingDate, &acPayInstrDate, &acPaymentDate, &acPaymentAmount,
		&mcDateGiven, &vendorFinalName, &vendorFinalDate,
		&crDate, &crAmount, &crDateReturned,
		&b.LastUpdated, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.PrevSerialNo = strPtr(prevSerial)
	b.TaxInvRecdAtSite = timePtr(taxInvRecd)

	b.QualityEngineer = models.StageStamp{DateGiven: timePtr(qeDate), Name: strPtr(qeName)}
	b.Measurement = models.StageStamp{DateGiven: timePtr(meDate), Name: strPtr(meName)}
	b.Certification = models.StageStamp{DateGiven: timePtr(ceDate), Name: strPtr(ceName)}
	b.SiteEngineer = models.StageStamp{DateGiven: timePtr(seDate), Name: strPtr(seName)}
	b.Architect = models.StageStamp{DateGiven: timePtr(arDate), Name: strPtr(arName)}
	b.SiteIncharge = models.StageStamp{DateGiven: timePtr(siDate), Name: strPtr(siName)}
	b.SiteDispatch = models.StageStamp{DateGiven: timePtr(sdDate), Name: strPtr(sdName)}

	b.GoodsReceipt = models.GoodsReceipt{
		DateGiven: timePtr(grDateGiven),
		No:        strPtr(grNo),
		Amount:    floatPtr(grAmount),
		Date:      timePtr(grDate),
	}
	b.InvReturnedToSite = timePtr(invReturned)

	b.RegionalOffice = models.RegionalOffice{
		DateGiven:                  timePtr(roDateGiven),
		Name:                       strPtr(roName),
		DateReceived:               timePtr(roDateReceived),
		ReceivedBy:                 strPtr(roReceivedBy),
		DateReturnedFromSurveyor:   timePtr(roRetSurveyor),
		DateReceivedFromIT:         timePtr(roRecdIT),
		DateReturnedFromSettlement: timePtr(roRetSettlement),
		DateReturnedFromCommittee:  timePtr(roRetCommittee),
	}
	b.Oversight = models.StageStamp{DateGiven: timePtr(ovDate), Name: strPtr(ovName)}
	b.ITDept = models.StageStamp{DateGiven: timePtr(itDate), Name: strPtr(itName)}
	b.Settlement = models.Settlement{
		DateGiven: timePtr(stDateGiven),
		Name:      strPtr(stName),
		No:        strPtr(stNo),
		Amount:    floatPtr(stAmount),
		Date:      timePtr(stDate),
	}
	b.Committee = models.Committee{
		DateGiven:    timePtr(cmDateGiven),
		DateReceived: timePtr(cmDateReceived),
		Remarks:      strPtr(cmRemarks),
	}
	b.Accounts = models.Accounts{
		DateGiven:        timePtr(acDateGiven),
		GivenBy:          strPtr(acGivenBy),
		Remarks:          strPtr(acRemarks),
		DateReceived:     timePtr(acDateReceived),
		BookingDate:      timePtr(acBookingDate),
		PaymentInstrDate: timePtr(acPayInstrDate),
		PaymentDate:      timePtr(acPaymentDate),
		PaymentAmount:    floatPtr(acPaymentAmount),
	}
	b.MeasurementCheck = models.MeasurementCheck{
		DateGiven:          timePtr(mcDateGiven),
		VendorFinalInvName: strPtr(vendorFinalName),
		VendorFinalInvDate: timePtr(vendorFinalDate),
	}
	b.CertificationReturn = models.CertificationReturn{
		Date:         timePtr(crDate),
		Amount:       floatPtr(crAmount),
		DateReturned: timePtr(crDateReturned),
	}

	return &b, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
