package workflow

// Organizational roles recognized by the transition rule table. A user may
// hold several roles at once; matching is set-intersection, not equality.
const (
	RoleSiteTeam           = "site_team"
	RoleSiteOfficer        = "site_officer" // legacy alias still sent by older clients
	RoleQualityEngineer    = "quality_engineer"
	RoleMeasurement        = "measurement_surveyor"
	RoleCertification      = "certification_surveyor"
	RoleSiteDispatchTeam   = "site_dispatch_team"
	RoleSiteArchitect      = "site_architect"
	RoleSiteIncharge       = "site_incharge"
	RoleSiteEngineer       = "site_engineer"
	RoleGoodsReceiptEntry  = "goods_receipt_entry"
	RoleGoodsReceiptReturn = "goods_receipt_return"

	RoleSurveyorTeam          = "surveyor_team"
	RoleCertificationSiteRet  = "certification_site_return"
	RoleMeasurementCheck      = "measurement_check"
	RoleCertificationRegional = "certification_regional"

	RoleRegionalOffice    = "regional_office"
	RoleOversightSurveyor = "oversight_surveyor"
	RoleITDepartment      = "it_department"
	RoleSettlementTeam    = "settlement_team"
	RoleITReturn          = "it_return"
	RoleSettlementReturn  = "settlement_return"
	RoleCommittee         = "committee"

	RoleAccountsDepartment = "accounts_department"
	RoleBookingTeam        = "booking_team"
	RolePaymentTeam        = "payment_team"

	RoleAdmin = "admin"
)

// RoleSet is a set of role strings. The source of a transition request may
// carry one role or many; rule matching tests membership, never position.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from a list of role strings, ignoring empty
// entries.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the role.
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// HasAny reports whether the set contains at least one of the given roles.
func (s RoleSet) HasAny(roles ...string) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// First returns one role from the set for display purposes, preferring the
// order the roles were requested in.
func (s RoleSet) First(preferred []string) string {
	for _, r := range preferred {
		if s.Has(r) {
			return r
		}
	}
	for r := range s {
		return r
	}
	return ""
}
