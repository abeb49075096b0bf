package models

import "time"

// Site status values. A rejected bill accepts no further workflow
// transitions until it is explicitly reinstated.
const (
	SiteStatusHold     = "hold"
	SiteStatusAccept   = "accept"
	SiteStatusProforma = "proforma"
	SiteStatusReject   = "reject"
)

// Named workflow states stored on the bill for quick display. The
// transition log is the source of truth; this is a denormalized snapshot.
const (
	StateSiteTeam           = "Site_Team"
	StateQualityEngineer    = "Quality_Engineer"
	StateMeasurement        = "Measurement_Surveyor"
	StateCertification      = "Certification_Surveyor"
	StateSiteDispatch       = "Site_Dispatch"
	StateSiteArchitect      = "Site_Architect"
	StateSiteIncharge       = "Site_Incharge"
	StateSiteEngineer       = "Site_Engineer"
	StateGoodsReceipt       = "Goods_Receipt"
	StateRegionalOffice     = "Regional_Office"
	StateOversightSurveyor  = "Oversight_Surveyor"
	StateITDepartment       = "IT_Department"
	StateSettlementTeam     = "Settlement_Team"
	StateCommittee          = "Committee"
	StateAccountsDepartment = "Accounts_Department"
	StateCompleted          = "Completed"
	StateRejected           = "Rejected"
)

// TerminalStates are workflow states that exclude a bill from the
// stuck-bill report.
var TerminalStates = []string{StateCompleted, StateRejected}

// Bill is the workflow subject. Stage sub-block fields are nullable; a nil
// date_given means the bill has not reached that stage yet. Backward
// transitions never clear stamped dates.
type Bill struct {
	ID           string  `json:"id"`
	SerialNo     string  `json:"serial_no"`
	PrevSerialNo *string `json:"prev_serial_no,omitempty"`

	VendorNo     string  `json:"vendor_no"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	NatureOfWork string  `json:"nature_of_work"`
	Region       string  `json:"region"`

	BillDate         time.Time  `json:"bill_date"`
	TaxInvRecdAtSite *time.Time `json:"tax_inv_recd_at_site,omitempty"`

	Position      int    `json:"position"`
	MaxPosition   int    `json:"max_position"`
	SiteStatus    string `json:"site_status"`
	WorkflowState string `json:"workflow_state"`

	QualityEngineer StageStamp `json:"quality_engineer"`
	Measurement     StageStamp `json:"measurement"`
	Certification   StageStamp `json:"certification"`
	SiteEngineer    StageStamp `json:"site_engineer"`
	Architect       StageStamp `json:"architect"`
	SiteIncharge    StageStamp `json:"site_incharge"`
	SiteDispatch    StageStamp `json:"site_dispatch"`

	GoodsReceipt      GoodsReceipt `json:"goods_receipt"`
	InvReturnedToSite *time.Time   `json:"inv_returned_to_site,omitempty"`

	RegionalOffice RegionalOffice `json:"regional_office"`
	Oversight      StageStamp     `json:"oversight"`
	ITDept         StageStamp     `json:"it_dept"`
	Settlement     Settlement     `json:"settlement"`
	Committee      Committee      `json:"committee"`
	Accounts       Accounts       `json:"accounts"`

	MeasurementCheck    MeasurementCheck    `json:"measurement_check"`
	CertificationReturn CertificationReturn `json:"certification_return"`

	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// StageStamp is the minimal per-stage record: when the bill was handed to
// the stage and who received it.
type StageStamp struct {
	DateGiven *time.Time `json:"date_given,omitempty"`
	Name      *string    `json:"name,omitempty"`
}

// GoodsReceipt captures the goods-receipt entry details keyed in by the
// site team.
type GoodsReceipt struct {
	DateGiven *time.Time `json:"date_given,omitempty"`
	No        *string    `json:"no,omitempty"`
	Amount    *float64   `json:"amount,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
}

// RegionalOffice tracks the bill's passage through the regional finance
// office, including the various return legs.
type RegionalOffice struct {
	DateGiven                  *time.Time `json:"date_given,omitempty"`
	Name                       *string    `json:"name,omitempty"`
	DateReceived               *time.Time `json:"date_received,omitempty"`
	ReceivedBy                 *string    `json:"received_by,omitempty"`
	DateReturnedFromSurveyor   *time.Time `json:"date_returned_from_surveyor,omitempty"`
	DateReceivedFromIT         *time.Time `json:"date_received_from_it,omitempty"`
	DateReturnedFromSettlement *time.Time `json:"date_returned_from_settlement,omitempty"`
	DateReturnedFromCommittee  *time.Time `json:"date_returned_from_committee,omitempty"`
}

// Settlement is the settlement-entry sub-block.
type Settlement struct {
	DateGiven *time.Time `json:"date_given,omitempty"`
	Name      *string    `json:"name,omitempty"`
	No        *string    `json:"no,omitempty"`
	Amount    *float64   `json:"amount,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
}

// Committee is the oversight-committee approval sub-block.
type Committee struct {
	DateGiven    *time.Time `json:"date_given,omitempty"`
	DateReceived *time.Time `json:"date_received,omitempty"`
	Remarks      *string    `json:"remarks,omitempty"`
}

// Accounts is the accounts-department sub-block, through booking and
// payment.
type Accounts struct {
	DateGiven        *time.Time `json:"date_given,omitempty"`
	GivenBy          *string    `json:"given_by,omitempty"`
	Remarks          *string    `json:"remarks,omitempty"`
	DateReceived     *time.Time `json:"date_received,omitempty"`
	BookingDate      *time.Time `json:"booking_date,omitempty"`
	PaymentInstrDate *time.Time `json:"payment_instr_date,omitempty"`
	PaymentDate      *time.Time `json:"payment_date,omitempty"`
	PaymentAmount    *float64   `json:"payment_amount,omitempty"`
}

// MeasurementCheck records the surveyor team's measurement verification
// and the final vendor invoice handover.
type MeasurementCheck struct {
	DateGiven          *time.Time `json:"date_given,omitempty"`
	VendorFinalInvName *string    `json:"vendor_final_inv_name,omitempty"`
	VendorFinalInvDate *time.Time `json:"vendor_final_inv_date,omitempty"`
}

// CertificationReturn records the certified-payment figures returned by
// the surveyor team.
type CertificationReturn struct {
	Date         *time.Time `json:"date,omitempty"`
	Amount       *float64   `json:"amount,omitempty"`
	DateReturned *time.Time `json:"date_returned,omitempty"`
}

// IsRejected reports whether the bill is in the terminal rejected site
// status and must refuse all further transitions.
func (b *Bill) IsRejected() bool {
	return b.SiteStatus == SiteStatusReject
}
