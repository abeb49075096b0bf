package workflow

// AccessConfig consolidates the role-to-level map and the team field
// allow-lists into one structure built at process start and passed
// explicitly to the engine and services.
type AccessConfig struct {
	// RoleLevels maps a role to the workflow level its desk sits at. Used
	// by the bills-above-level query.
	RoleLevels map[string]int

	// RoleTeams maps a role to its team for field-update access control.
	RoleTeams map[string]string

	// TeamFields maps a team to the stage fields its members may update
	// directly, by logical dotted field name.
	TeamFields map[string][]string
}

// DefaultAccessConfig returns the standard access configuration.
func DefaultAccessConfig() AccessConfig {
	return AccessConfig{
		RoleLevels: map[string]int{
			RoleSiteTeam:           1,
			RoleSiteOfficer:        1,
			RoleQualityEngineer:    1,
			RoleSiteArchitect:      1,
			RoleSiteEngineer:       1,
			RoleSiteIncharge:       1,
			RoleMeasurement:        2,
			RoleCertification:      2,
			RoleSurveyorTeam:       2,
			RoleRegionalOffice:     2,
			RoleOversightSurveyor:  3,
			RoleITDepartment:       5,
			RoleSettlementTeam:     5,
			RoleCommittee:          5,
			RoleAccountsDepartment: 7,
		},
		RoleTeams: map[string]string{
			RoleMeasurement:        teamSurveyor,
			RoleCertification:      teamSurveyor,
			RoleOversightSurveyor:  teamSurveyor,
			RoleSurveyorTeam:       teamSurveyor,
			RoleSiteTeam:           teamSite,
			RoleSiteOfficer:        teamSite,
			RoleSiteEngineer:       teamSite,
			RoleSiteIncharge:       teamSite,
			RoleSiteArchitect:      teamSite,
			RoleRegionalOffice:     teamRegional,
			RoleSettlementTeam:     teamRegional,
			RoleAccountsDepartment: teamAccounts,
			RoleBookingTeam:        teamAccounts,
			RolePaymentTeam:        teamAccounts,
			RoleAdmin:              teamAdmin,
		},
		TeamFields: map[string][]string{
			teamSurveyor: {
				FieldCertReturnDate,
				FieldCertReturnAmount,
			},
			teamSite: {
				FieldGoodsReceiptNo,
				FieldGoodsReceiptDate,
				FieldGoodsReceiptAmount,
			},
			teamRegional: {
				FieldSettlementNo,
				FieldSettlementAmount,
				FieldSettlementDate,
			},
			teamAccounts: {
				FieldAccountsPaymentDate,
				FieldAccountsPaymentAmount,
			},
		},
	}
}

const (
	teamSurveyor = "Surveyor Team"
	teamSite     = "Site Team"
	teamRegional = "Regional Office Team"
	teamAccounts = "Accounts Team"
	teamAdmin    = "admin"
)

// CanUpdateField reports whether any of the caller's roles grants direct
// update access to the logical field. Admin bypasses the allow-lists.
func (c AccessConfig) CanUpdateField(roles RoleSet, field string) bool {
	for role := range roles {
		team, ok := c.RoleTeams[role]
		if !ok {
			continue
		}
		if team == teamAdmin {
			return true
		}
		for _, f := range c.TeamFields[team] {
			if f == field {
				return true
			}
		}
	}
	return false
}

// LevelForRole returns the workflow level for a role, or 0 and false when
// the role is unknown.
func (c AccessConfig) LevelForRole(role string) (int, bool) {
	level, ok := c.RoleLevels[role]
	return level, ok
}
