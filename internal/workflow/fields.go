package workflow

// Logical dotted field names for stage sub-block writes. The rule table
// and the team allow-lists speak these names; the bill store maps them to
// storage columns.
const (
	FieldQualityEngDateGiven = "quality_engineer.date_given"
	FieldQualityEngName      = "quality_engineer.name"

	FieldMeasurementDateGiven = "measurement.date_given"
	FieldMeasurementName      = "measurement.name"

	FieldCertificationDateGiven = "certification.date_given"
	FieldCertificationName      = "certification.name"

	FieldSiteEngineerDateGiven = "site_engineer.date_given"
	FieldSiteEngineerName      = "site_engineer.name"

	FieldArchitectDateGiven = "architect.date_given"
	FieldArchitectName      = "architect.name"

	FieldSiteInchargeDateGiven = "site_incharge.date_given"
	FieldSiteInchargeName      = "site_incharge.name"

	FieldSiteDispatchDateGiven = "site_dispatch.date_given"
	FieldSiteDispatchName      = "site_dispatch.name"

	FieldGoodsReceiptDateGiven = "goods_receipt.date_given"
	FieldGoodsReceiptNo        = "goods_receipt.no"
	FieldGoodsReceiptAmount    = "goods_receipt.amount"
	FieldGoodsReceiptDate      = "goods_receipt.date"
	FieldInvReturnedToSite     = "inv_returned_to_site"

	FieldRegionalDateGiven          = "regional_office.date_given"
	FieldRegionalName               = "regional_office.name"
	FieldRegionalDateReceived       = "regional_office.date_received"
	FieldRegionalReceivedBy         = "regional_office.received_by"
	FieldRegionalRetFromSurveyor    = "regional_office.date_returned_from_surveyor"
	FieldRegionalRecdFromIT         = "regional_office.date_received_from_it"
	FieldRegionalRetFromSettlement  = "regional_office.date_returned_from_settlement"
	FieldRegionalRetFromCommittee   = "regional_office.date_returned_from_committee"

	FieldOversightDateGiven = "oversight.date_given"
	FieldOversightName      = "oversight.name"

	FieldITDeptDateGiven = "it_dept.date_given"
	FieldITDeptName      = "it_dept.name"

	FieldSettlementDateGiven = "settlement.date_given"
	FieldSettlementName      = "settlement.name"
	FieldSettlementNo        = "settlement.no"
	FieldSettlementAmount    = "settlement.amount"
	FieldSettlementDate      = "settlement.date"

	FieldCommitteeDateGiven    = "committee.date_given"
	FieldCommitteeDateReceived = "committee.date_received"
	FieldCommitteeRemarks      = "committee.remarks"

	FieldAccountsDateGiven        = "accounts.date_given"
	FieldAccountsGivenBy          = "accounts.given_by"
	FieldAccountsRemarks          = "accounts.remarks"
	FieldAccountsDateReceived     = "accounts.date_received"
	FieldAccountsBookingDate      = "accounts.booking_date"
	FieldAccountsPaymentInstrDate = "accounts.payment_instr_date"
	FieldAccountsPaymentDate      = "accounts.payment_date"
	FieldAccountsPaymentAmount    = "accounts.payment_amount"

	FieldMeasurementCheckDateGiven = "measurement_check.date_given"
	FieldVendorFinalInvName        = "vendor_final_inv.name"
	FieldVendorFinalInvDateGiven   = "vendor_final_inv.date_given"

	FieldCertReturnDate         = "certification_return.date"
	FieldCertReturnAmount       = "certification_return.amount"
	FieldCertReturnDateReturned = "certification_return.date_returned"

	FieldSiteStatus = "site_status"
)
