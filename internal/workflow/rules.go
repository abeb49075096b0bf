package workflow

import (
	"time"

	"github.com/krishnavp/billflow/internal/models"
)

// Guard rejection messages. These are load-bearing for API consumers.
const (
	msgServiceToQualityInspector = "Service bill cannot be forwarded to Quality Inspector"
	msgMaterialToSiteArchitect   = "Material bill cannot be forwarded to Site Architect"
)

// FieldWrite is one declarative stage-field assignment produced by a rule.
type FieldWrite struct {
	Field string
	Value interface{}
}

// HistoryEntry is the denormalized history element derived for display.
type HistoryEntry struct {
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Comments  string    `json:"comments"`
	Action    string    `json:"action"`
}

// OutcomeKind discriminates rule evaluation results.
type OutcomeKind int

const (
	// OutcomeApplied means a production matched and its effect should be
	// persisted.
	OutcomeApplied OutcomeKind = iota
	// OutcomeRejected means a production matched but a guard failed; the
	// bill must not be mutated.
	OutcomeRejected
	// OutcomeNoRule means no production applies to the role/action
	// combination.
	OutcomeNoRule
)

// Outcome is the result of evaluating the rule table for one bill.
type Outcome struct {
	Kind   OutcomeKind
	Reason string

	Writes         []FieldWrite
	NewPosition    int
	NewMaxPosition int
	NewState       string
	History        HistoryEntry
}

// evalInput carries the per-call values productions stamp into the bill.
type evalInput struct {
	toName  string
	remarks string
	now     time.Time
	action  string
}

// production is one guarded entry in the ordered rule chain. The first
// production whose role patterns and action match decides the outcome;
// later productions are never consulted, so ordering is significant.
type production struct {
	name     string
	action   string
	from     []string
	to       []string
	position int
	state    string

	// guard returns a rejection reason, or "" to allow the move.
	guard func(bill *models.Bill) string

	// stamp appends the production's stage-field writes.
	stamp func(w *effectWriter, in evalInput)
}

func (p *production) matches(from, to RoleSet, action string) bool {
	return action == p.action && from.HasAny(p.from...) && to.HasAny(p.to...)
}

type effectWriter struct {
	writes []FieldWrite
}

func (w *effectWriter) set(field string, value interface{}) {
	w.writes = append(w.writes, FieldWrite{Field: field, Value: value})
}

// RuleTable is the ordered transition rule chain.
type RuleTable struct {
	productions []production
}

// Evaluate runs the bill through the rule chain. It is a pure function:
// no I/O, no mutation of the bill.
func (t *RuleTable) Evaluate(bill *models.Bill, from, to RoleSet, toName, action, remarks string, now time.Time) Outcome {
	in := evalInput{
		toName:  toName,
		remarks: remarks,
		now:     now,
		action:  action,
	}
	for i := range t.productions {
		p := &t.productions[i]
		if !p.matches(from, to, in.action) {
			continue
		}

		if p.guard != nil {
			if reason := p.guard(bill); reason != "" {
				return Outcome{Kind: OutcomeRejected, Reason: reason}
			}
		}

		w := &effectWriter{}
		if p.stamp != nil {
			p.stamp(w, in)
		}

		maxPos := bill.MaxPosition
		if in.action == models.ActionForward && p.position > maxPos {
			maxPos = p.position
		}

		return Outcome{
			Kind:           OutcomeApplied,
			Writes:         w.writes,
			NewPosition:    p.position,
			NewMaxPosition: maxPos,
			NewState:       p.state,
			History: HistoryEntry{
				State:     p.state,
				Timestamp: in.now,
				Actor:     in.toName,
				Comments:  in.remarks,
				Action:    in.action,
			},
		}
	}

	return Outcome{Kind: OutcomeNoRule, Reason: ErrNoMatchingRule.Error()}
}

// NewRuleTable builds the canonical rule chain. Positions follow the
// linear 1..8 numbering: 1 site stage, 2 surveyor/regional handoff,
// 3 oversight surveyor, 4 surveyor return, 5 IT/settlement/committee,
// 6 committee return, 7 accounts, 8 booking/payment.
func NewRuleTable() *RuleTable {
	siteTeam := []string{RoleSiteTeam, RoleSiteOfficer}

	stampGiven := func(dateField, nameField string) func(*effectWriter, evalInput) {
		return func(w *effectWriter, in evalInput) {
			w.set(dateField, in.now)
			w.set(nameField, in.toName)
		}
	}

	return &RuleTable{productions: []production{
		// Site-team fan-out: parallel sibling stages at level 1, except the
		// surveyor sub-branches which advance to level 2.
		{
			name: "site to quality engineer", action: models.ActionForward,
			from: siteTeam, to: []string{RoleQualityEngineer},
			position: 1, state: models.StateQualityEngineer,
			guard: func(b *models.Bill) string {
				if b.NatureOfWork == "Service" {
					return msgServiceToQualityInspector
				}
				return ""
			},
			stamp: stampGiven(FieldQualityEngDateGiven, FieldQualityEngName),
		},
		{
			name: "site to measurement surveyor", action: models.ActionForward,
			from: siteTeam, to: []string{RoleMeasurement},
			position: 2, state: models.StateMeasurement,
			stamp: stampGiven(FieldMeasurementDateGiven, FieldMeasurementName),
		},
		{
			name: "site to certification surveyor", action: models.ActionForward,
			from: siteTeam, to: []string{RoleCertification},
			position: 2, state: models.StateCertification,
			stamp: stampGiven(FieldCertificationDateGiven, FieldCertificationName),
		},
		{
			name: "site to goods receipt entry", action: models.ActionForward,
			from: siteTeam, to: []string{RoleGoodsReceiptEntry},
			position: 1, state: models.StateGoodsReceipt,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldGoodsReceiptDateGiven, in.now)
			},
		},
		{
			name: "goods receipt returned to site", action: models.ActionForward,
			from: siteTeam, to: []string{RoleGoodsReceiptReturn},
			position: 1, state: models.StateSiteTeam,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldInvReturnedToSite, in.now)
			},
		},
		{
			name: "site to site engineer", action: models.ActionForward,
			from: siteTeam, to: []string{RoleSiteEngineer},
			position: 1, state: models.StateSiteEngineer,
			stamp: stampGiven(FieldSiteEngineerDateGiven, FieldSiteEngineerName),
		},
		{
			name: "site to site architect", action: models.ActionForward,
			from: siteTeam, to: []string{RoleSiteArchitect},
			position: 1, state: models.StateSiteArchitect,
			guard: func(b *models.Bill) string {
				if b.NatureOfWork == "Material" {
					return msgMaterialToSiteArchitect
				}
				return ""
			},
			stamp: stampGiven(FieldArchitectDateGiven, FieldArchitectName),
		},
		{
			name: "site to site incharge", action: models.ActionForward,
			from: siteTeam, to: []string{RoleSiteIncharge},
			position: 1, state: models.StateSiteIncharge,
			stamp: stampGiven(FieldSiteInchargeDateGiven, FieldSiteInchargeName),
		},
		{
			name: "site to dispatch team", action: models.ActionForward,
			from: siteTeam, to: []string{RoleSiteDispatchTeam},
			position: 1, state: models.StateSiteDispatch,
			stamp: stampGiven(FieldSiteDispatchDateGiven, FieldSiteDispatchName),
		},

		// Site team hands the bill up to the regional finance office.
		{
			name: "site to regional office", action: models.ActionForward,
			from: siteTeam, to: []string{RoleRegionalOffice},
			position: 2, state: models.StateRegionalOffice,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldRegionalDateGiven, in.now)
				w.set(FieldRegionalName, in.toName)
				w.set(FieldSiteStatus, models.SiteStatusHold)
			},
		},

		// Surveyor-team returns.
		{
			name: "surveyor certification return to site", action: models.ActionForward,
			from: []string{RoleSurveyorTeam}, to: []string{RoleCertificationSiteRet},
			position: 1, state: models.StateSiteTeam,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldCertReturnDateReturned, in.now)
			},
		},
		{
			name: "surveyor measurement check", action: models.ActionForward,
			from: []string{RoleSurveyorTeam}, to: []string{RoleMeasurementCheck},
			position: 1, state: models.StateSiteTeam,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldVendorFinalInvName, in.toName)
				w.set(FieldVendorFinalInvDateGiven, in.now)
				w.set(FieldMeasurementCheckDateGiven, in.now)
			},
		},
		{
			name: "surveyor certification to regional office", action: models.ActionForward,
			from: []string{RoleSurveyorTeam}, to: []string{RoleCertificationRegional},
			position: 2, state: models.StateRegionalOffice,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldRegionalRetFromSurveyor, in.now)
			},
		},

		// Regional office and the oversight surveyor.
		{
			name: "regional to oversight surveyor", action: models.ActionForward,
			from: []string{RoleRegionalOffice}, to: []string{RoleOversightSurveyor},
			position: 3, state: models.StateOversightSurveyor,
			stamp: stampGiven(FieldOversightDateGiven, FieldOversightName),
		},
		{
			name: "oversight surveyor returns to regional", action: models.ActionForward,
			from: []string{RoleOversightSurveyor}, to: []string{RoleRegionalOffice},
			position: 4, state: models.StateRegionalOffice,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldRegionalRetFromSurveyor, in.now)
				w.set(FieldRegionalReceivedBy, in.toName)
			},
		},

		// Regional-office fan-out at level 5.
		{
			name: "regional to IT department", action: models.ActionForward,
			from: []string{RoleRegionalOffice}, to: []string{RoleITDepartment},
			position: 5, state: models.StateITDepartment,
			stamp: stampGiven(FieldITDeptDateGiven, FieldITDeptName),
		},
		{
			name: "regional to settlement team", action: models.ActionForward,
			from: []string{RoleRegionalOffice}, to: []string{RoleSettlementTeam},
			position: 5, state: models.StateSettlementTeam,
			stamp: stampGiven(FieldSettlementDateGiven, FieldSettlementName),
		},
		{
			name: "IT returns to regional", action: models.ActionForward,
			from: []string{RoleRegionalOffice}, to: []string{RoleITReturn},
			position: 5, state: models.StateRegionalOffice,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldRegionalRecdFromIT, in.now)
			},
		},
		{
			name: "settlement returns to regional", action: models.ActionForward,
			from: []string{RoleRegionalOffice}, to: []string{RoleSettlementReturn},
			position: 5, state: models.StateRegionalOffice,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldRegionalRetFromSettlement, in.now)
			},
		},
		{
			name: "regional to committee", action: models.ActionForward,
			from: []string{RoleRegionalOffice}, to: []string{RoleCommittee},
			position: 5, state: models.StateCommittee,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldCommitteeDateGiven, in.now)
			},
		},
		{
			name: "committee returns to regional", action: models.ActionForward,
			from: []string{RoleCommittee}, to: []string{RoleRegionalOffice},
			position: 6, state: models.StateRegionalOffice,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldRegionalRetFromCommittee, in.now)
				w.set(FieldRegionalReceivedBy, in.toName)
				w.set(FieldCommitteeRemarks, in.remarks)
			},
		},

		// Accounts department through booking and payment.
		{
			name: "regional to accounts", action: models.ActionForward,
			from: []string{RoleRegionalOffice}, to: []string{RoleAccountsDepartment},
			position: 7, state: models.StateAccountsDepartment,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldAccountsDateGiven, in.now)
				w.set(FieldAccountsGivenBy, in.toName)
				w.set(FieldAccountsRemarks, in.remarks)
			},
		},
		{
			name: "accounts to booking team", action: models.ActionForward,
			from: []string{RoleAccountsDepartment}, to: []string{RoleBookingTeam},
			position: 8, state: models.StateAccountsDepartment,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldAccountsBookingDate, in.now)
			},
		},
		{
			name: "accounts to payment team", action: models.ActionForward,
			from: []string{RoleAccountsDepartment}, to: []string{RolePaymentTeam},
			position: 8, state: models.StateAccountsDepartment,
			stamp: func(w *effectWriter, in evalInput) {
				w.set(FieldAccountsPaymentInstrDate, in.now)
			},
		},

		// Backward productions mirror the forward hops. They move position
		// only; previously stamped dates stay as an audit trail.
		{
			name: "regional back to site incharge", action: models.ActionBackward,
			from: []string{RoleRegionalOffice}, to: []string{RoleSiteIncharge},
			position: 1, state: models.StateSiteIncharge,
		},
		{
			name: "oversight back to regional", action: models.ActionBackward,
			from: []string{RoleOversightSurveyor}, to: []string{RoleRegionalOffice},
			position: 2, state: models.StateRegionalOffice,
		},
		{
			name: "regional back to oversight", action: models.ActionBackward,
			from: []string{RoleRegionalOffice}, to: []string{RoleOversightSurveyor},
			position: 3, state: models.StateOversightSurveyor,
		},
		{
			name: "committee back to regional", action: models.ActionBackward,
			from: []string{RoleCommittee}, to: []string{RoleRegionalOffice},
			position: 4, state: models.StateRegionalOffice,
		},
		{
			name: "regional back to committee", action: models.ActionBackward,
			from: []string{RoleRegionalOffice}, to: []string{RoleCommittee},
			position: 5, state: models.StateCommittee,
		},
		{
			name: "accounts back to regional", action: models.ActionBackward,
			from: []string{RoleAccountsDepartment}, to: []string{RoleRegionalOffice},
			position: 6, state: models.StateRegionalOffice,
		},
	}}
}
