package models

// VendorMaster is reference master data maintained outside the workflow
// engine. The reporting projector joins against it and must tolerate a
// missing vendor.
type VendorMaster struct {
	VendorNo         string `json:"vendor_no"`
	VendorName       string `json:"vendor_name"`
	PAN              string `json:"pan"`
	GSTNumber        string `json:"gst_number"`
	ComplianceStatus string `json:"compliance_status"`
	PANStatus        string `json:"pan_status"`
}
