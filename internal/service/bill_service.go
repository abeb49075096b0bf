package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/krishnavp/billflow/internal/models"
	"github.com/krishnavp/billflow/internal/repository"
	"github.com/krishnavp/billflow/internal/workflow"
	"github.com/krishnavp/billflow/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrAccessDenied is returned when the caller's team may not update
	// the requested field.
	ErrAccessDenied = errors.New("role is not allowed to update this field")

	// ErrInvalidBill is returned when a create request fails validation.
	ErrInvalidBill = errors.New("vendor_no, amount, nature_of_work, region and bill_date are required")
)

// billStore is the subset of bill persistence the service needs.
type billStore interface {
	Create(ctx context.Context, bill *models.Bill) error
	GetByID(ctx context.Context, id string) (*models.Bill, error)
	MaxSerialForPrefix(ctx context.Context, prefix string) (string, error)
	UpdateSerial(ctx context.Context, id, newSerial, prevSerial string) error
	UpdateBillDate(ctx context.Context, id string, billDate time.Time) error
	UpdateField(ctx context.Context, id, field string, value interface{}, updatedAt time.Time) error
	SetFields(ctx context.Context, id string, writes []workflow.FieldWrite, updatedAt time.Time) error
}

// vendorStore manages vendor master data.
type vendorStore interface {
	GetByVendorNo(ctx context.Context, vendorNo string) (*models.VendorMaster, error)
	Upsert(ctx context.Context, v *models.VendorMaster) error
}

// BillService handles bill intake, fiscal-year serial numbering and
// team-scoped field updates.
type BillService struct {
	bills   billStore
	vendors vendorStore
	access  workflow.AccessConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewBillService creates a bill service.
func NewBillService(bills billStore, vendors vendorStore, access workflow.AccessConfig, logger *zap.Logger) *BillService {
	return &BillService{
		bills:   bills,
		vendors: vendors,
		access:  access,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateBillRequest is the bill intake payload.
type CreateBillRequest struct {
	VendorNo         string     `json:"vendorNo"`
	Amount           float64    `json:"amount"`
	Currency         string     `json:"currency"`
	NatureOfWork     string     `json:"natureOfWork"`
	Region           string     `json:"region"`
	BillDate         time.Time  `json:"billDate"`
	TaxInvRecdAtSite *time.Time `json:"taxInvRecdAtSite,omitempty"`
}

// CreateBill registers a new bill at the site-team desk, allocating the
// next serial number in the bill date's fiscal year.
func (s *BillService) CreateBill(ctx context.Context, req CreateBillRequest) (*models.Bill, error) {
	if req.VendorNo == "" || req.Amount <= 0 || req.NatureOfWork == "" ||
		req.Region == "" || req.BillDate.IsZero() {
		return nil, ErrInvalidBill
	}

	vendor, err := s.vendors.GetByVendorNo(ctx, req.VendorNo)
	if err != nil {
		return nil, err
	}
	if vendor == nil {
		s.logger.Warn("Bill created for vendor missing from master data",
			zap.String("vendor_no", req.VendorNo))
	}

	serial, err := s.nextSerial(ctx, req.BillDate)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	now := s.now()
	bill := &models.Bill{
		ID:               uuid.NewString(),
		SerialNo:         serial,
		VendorNo:         req.VendorNo,
		Amount:           req.Amount,
		Currency:         currency,
		NatureOfWork:     req.NatureOfWork,
		Region:           req.Region,
		BillDate:         req.BillDate,
		TaxInvRecdAtSite: req.TaxInvRecdAtSite,
		Position:         1,
		MaxPosition:      1,
		SiteStatus:       models.SiteStatusAccept,
		WorkflowState:    models.StateSiteTeam,
		LastUpdated:      now,
		CreatedAt:        now,
	}

	if err := s.bills.Create(ctx, bill); err != nil {
		return nil, err
	}

	s.logger.Info("Created bill",
		zap.String("bill_id", bill.ID),
		zap.String("serial_no", bill.SerialNo),
		zap.String("vendor_no", bill.VendorNo))

	return bill, nil
}

// GetBill retrieves a bill by id.
func (s *BillService) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	bill, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, workflow.ErrBillNotFound
	}
	return bill, nil
}

// CorrectFiscalYear fixes a wrongly keyed bill date. If the corrected
// date falls in a different fiscal year, a fresh serial is allocated
// there and the old serial is archived on the bill.
func (s *BillService) CorrectFiscalYear(ctx context.Context, id string, billDate time.Time) (*models.Bill, error) {
	bill, err := s.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.bills.UpdateBillDate(ctx, id, billDate); err != nil {
		return nil, err
	}

	newPrefix := fiscalYearPrefix(billDate)
	if strings.HasPrefix(bill.SerialNo, newPrefix) {
		return s.GetBill(ctx, id)
	}

	serial, err := s.nextSerial(ctx, billDate)
	if err != nil {
		return nil, err
	}
	if err := s.bills.UpdateSerial(ctx, id, serial, bill.SerialNo); err != nil {
		return nil, err
	}

	s.logger.Info("Reassigned bill serial for fiscal-year correction",
		zap.String("bill_id", id),
		zap.String("old_serial", bill.SerialNo),
		zap.String("new_serial", serial))

	return s.GetBill(ctx, id)
}

// UpdateTeamField applies one direct stage-field update on behalf of a
// team member, subject to the team allow-lists.
func (s *BillService) UpdateTeamField(ctx context.Context, id string, roles []string, field string, value interface{}) error {
	if _, ok := repository.ColumnForField(field); !ok {
		return fmt.Errorf("unknown bill field %q", field)
	}
	if !s.access.CanUpdateField(workflow.NewRoleSet(roles...), field) {
		return ErrAccessDenied
	}

	bill, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if bill == nil {
		return workflow.ErrBillNotFound
	}

	if err := s.bills.UpdateField(ctx, id, field, value, s.now()); err != nil {
		return err
	}

	s.logger.Info("Updated bill field",
		zap.String("bill_id", id),
		zap.String("field", field),
		zap.Strings("roles", roles))
	return nil
}

// ReceiveBill stamps physical receipt of a bill at the desk implied by
// the caller's roles. Receipt at the regional office also releases the
// hold placed when the site dispatched the bill; receipt at accounts
// marks the bill outstanding for payment.
func (s *BillService) ReceiveBill(ctx context.Context, id string, roles []string, receivedBy string) (*models.Bill, error) {
	set := workflow.NewRoleSet(roles...)
	now := s.now()

	var writes []workflow.FieldWrite
	switch {
	case set.Has(workflow.RoleRegionalOffice):
		writes = []workflow.FieldWrite{
			{Field: workflow.FieldRegionalDateReceived, Value: now},
			{Field: workflow.FieldRegionalReceivedBy, Value: receivedBy},
			{Field: workflow.FieldSiteStatus, Value: models.SiteStatusAccept},
		}
	case set.HasAny(workflow.RoleAccountsDepartment, workflow.RoleBookingTeam, workflow.RolePaymentTeam):
		writes = []workflow.FieldWrite{
			{Field: workflow.FieldAccountsDateReceived, Value: now},
		}
	default:
		return nil, ErrAccessDenied
	}

	bill, err := s.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.bills.SetFields(ctx, bill.ID, writes, now); err != nil {
		return nil, err
	}

	s.logger.Info("Received bill",
		zap.String("bill_id", id),
		zap.Strings("roles", roles),
		zap.String("received_by", receivedBy))

	return s.GetBill(ctx, id)
}

// UpsertVendor validates and stores a vendor master record. PAN and
// GSTIN are optional but must be well-formed when present.
func (s *BillService) UpsertVendor(ctx context.Context, v *models.VendorMaster) error {
	if v.VendorNo == "" || v.VendorName == "" {
		return fmt.Errorf("vendor_no and vendor_name are required")
	}
	if v.PAN != "" {
		if err := utils.ValidatePAN(v.PAN); err != nil {
			return err
		}
	}
	if v.GSTNumber != "" {
		if err := utils.ValidateGSTIN(v.GSTNumber); err != nil {
			return err
		}
	}

	if err := s.vendors.Upsert(ctx, v); err != nil {
		return err
	}

	s.logger.Info("Upserted vendor", zap.String("vendor_no", v.VendorNo))
	return nil
}

// nextSerial allocates the next serial in the fiscal year of the given
// date: two-digit fiscal-year prefix plus a five-digit sequence.
func (s *BillService) nextSerial(ctx context.Context, billDate time.Time) (string, error) {
	prefix := fiscalYearPrefix(billDate)

	max, err := s.bills.MaxSerialForPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}

	seq := 1
	if max != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(max, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed serial %q: %w", max, err)
		}
		seq = n + 1
	}

	return fmt.Sprintf("%s%05d", prefix, seq), nil
}

// fiscalYearPrefix returns the two-digit fiscal-year label for a date.
// The fiscal year runs April through March and is labelled by its end
// year: March 2026 and April 2025 both fall in FY "26".
func fiscalYearPrefix(t time.Time) string {
	year := t.Year()
	if t.Month() >= time.April {
		year++
	}
	return fmt.Sprintf("%02d", year%100)
}
