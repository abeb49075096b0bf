package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/krishnavp/billflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockBillStore struct {
	getByID         func(ctx context.Context, id string) (*models.Bill, error)
	applyTransition func(ctx context.Context, id string, writes []FieldWrite, position, maxPosition int, state string, updatedAt time.Time) error
	countByState    func(ctx context.Context) (map[string]int, error)
	findStuck       func(ctx context.Context, before time.Time, excludeStates []string) ([]*models.Bill, error)
}

func (m *mockBillStore) GetByID(ctx context.Context, id string) (*models.Bill, error) {
	return m.getByID(ctx, id)
}

func (m *mockBillStore) ApplyTransition(ctx context.Context, id string, writes []FieldWrite, position, maxPosition int, state string, updatedAt time.Time) error {
	if m.applyTransition == nil {
		return nil
	}
	return m.applyTransition(ctx, id, writes, position, maxPosition, state, updatedAt)
}

func (m *mockBillStore) CountByState(ctx context.Context) (map[string]int, error) {
	return m.countByState(ctx)
}

func (m *mockBillStore) FindStuck(ctx context.Context, before time.Time, excludeStates []string) ([]*models.Bill, error) {
	return m.findStuck(ctx, before, excludeStates)
}

type mockTransitionLog struct {
	appended []*models.TransitionRecord

	append       func(ctx context.Context, rec *models.TransitionRecord) error
	listByBill   func(ctx context.Context, billID string) ([]*models.TransitionRecord, error)
	latestByBill func(ctx context.Context, billID string) (*models.TransitionRecord, error)
}

func (m *mockTransitionLog) Append(ctx context.Context, rec *models.TransitionRecord) error {
	if m.append != nil {
		if err := m.append(ctx, rec); err != nil {
			return err
		}
	}
	m.appended = append(m.appended, rec)
	return nil
}

func (m *mockTransitionLog) ListByBill(ctx context.Context, billID string) ([]*models.TransitionRecord, error) {
	if m.listByBill == nil {
		return nil, nil
	}
	return m.listByBill(ctx, billID)
}

func (m *mockTransitionLog) LatestByBill(ctx context.Context, billID string) (*models.TransitionRecord, error) {
	if m.latestByBill == nil {
		return nil, nil
	}
	return m.latestByBill(ctx, billID)
}

func testEngine(bills BillStore, log TransitionLog) *Engine {
	return NewEngine(NewRuleTable(), bills, log, DefaultAccessConfig(), zap.NewNop())
}

func billInState(id, state string) *models.Bill {
	return &models.Bill{
		ID:            id,
		NatureOfWork:  "Material",
		SiteStatus:    models.SiteStatusAccept,
		WorkflowState: state,
	}
}

func siteToRegional(ids ...string) BatchRequest {
	return BatchRequest{
		FromUser: UserRef{ID: "u1", Name: "Asha", Roles: []string{RoleSiteTeam}},
		ToUser:   UserRef{ID: "u2", Name: "Ravi", Roles: []string{RoleRegionalOffice}},
		BillIDs:  ids,
		Action:   models.ActionForward,
		Remarks:  "ok",
	}
}

func TestApplyBatchValidation(t *testing.T) {
	engine := testEngine(&mockBillStore{}, &mockTransitionLog{})

	tests := []struct {
		name string
		req  BatchRequest
	}{
		{"empty bill ids", BatchRequest{
			FromUser: UserRef{Roles: []string{RoleSiteTeam}},
			ToUser:   UserRef{Roles: []string{RoleRegionalOffice}},
			Action:   models.ActionForward,
		}},
		{"missing from roles", BatchRequest{
			ToUser:  UserRef{Roles: []string{RoleRegionalOffice}},
			BillIDs: []string{"b1"},
			Action:  models.ActionForward,
		}},
		{"missing to roles", BatchRequest{
			FromUser: UserRef{Roles: []string{RoleSiteTeam}},
			BillIDs:  []string{"b1"},
			Action:   models.ActionForward,
		}},
		{"bad action", BatchRequest{
			FromUser: UserRef{Roles: []string{RoleSiteTeam}},
			ToUser:   UserRef{Roles: []string{RoleRegionalOffice}},
			BillIDs:  []string{"b1"},
			Action:   "sideways",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.ApplyBatch(context.Background(), tt.req)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestApplyBatchPartitionsResults(t *testing.T) {
	bills := map[string]*models.Bill{
		"b1": billInState("b1", models.StateSiteTeam),
		"b3": billInState("b3", models.StateSiteTeam),
	}
	bills["b3"].SiteStatus = models.SiteStatusReject

	store := &mockBillStore{
		getByID: func(_ context.Context, id string) (*models.Bill, error) {
			return bills[id], nil
		},
	}
	log := &mockTransitionLog{}
	engine := testEngine(store, log)

	result, err := engine.ApplyBatch(context.Background(), siteToRegional("b1", "b2", "b3"))
	require.NoError(t, err)

	require.Len(t, result.Successful, 1)
	assert.Equal(t, "b1", result.Successful[0].BillID)
	assert.Equal(t, models.StateRegionalOffice, result.Successful[0].Workflow.State)

	require.Len(t, result.Failed, 2)
	assert.Equal(t, "b2", result.Failed[0].BillID)
	assert.Equal(t, "Bill not found", result.Failed[0].Message)
	assert.Equal(t, "b3", result.Failed[1].BillID)
	assert.Equal(t, "Bill is already rejected", result.Failed[1].Message)
}

func TestGuardFailureIsRecorded(t *testing.T) {
	bill := billInState("b1", models.StateSiteTeam)
	bill.NatureOfWork = "Service"

	applied := false
	store := &mockBillStore{
		getByID: func(context.Context, string) (*models.Bill, error) { return bill, nil },
		applyTransition: func(context.Context, string, []FieldWrite, int, int, string, time.Time) error {
			applied = true
			return nil
		},
	}
	log := &mockTransitionLog{}
	engine := testEngine(store, log)

	req := siteToRegional("b1")
	req.ToUser.Roles = []string{RoleQualityEngineer}

	result, err := engine.ApplyBatch(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "Service bill cannot be forwarded to Quality Inspector", result.Failed[0].Message)
	assert.False(t, applied, "guard failure must not mutate the bill")

	// The attempt is still recorded, with the state unchanged.
	require.Len(t, log.appended, 1)
	assert.Equal(t, models.StateSiteTeam, log.appended[0].State)
}

func TestNoMatchingRuleIsRecorded(t *testing.T) {
	bill := billInState("b1", models.StateCommittee)
	store := &mockBillStore{
		getByID: func(context.Context, string) (*models.Bill, error) { return bill, nil },
	}
	log := &mockTransitionLog{}
	engine := testEngine(store, log)

	req := siteToRegional("b1")
	req.FromUser.Roles = []string{RoleCommittee}
	req.ToUser.Roles = []string{RoleQualityEngineer}

	result, err := engine.ApplyBatch(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "no matching workflow transition rule found", result.Failed[0].Message)

	require.Len(t, log.appended, 1)
	assert.Equal(t, models.StateCommittee, log.appended[0].State)
}

func TestDurationFromPreviousRecord(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	prev := &models.TransitionRecord{
		BillID:    "b1",
		State:     models.StateSiteTeam,
		CreatedAt: now.Add(-2 * time.Hour),
	}

	store := &mockBillStore{
		getByID: func(context.Context, string) (*models.Bill, error) {
			return billInState("b1", models.StateSiteTeam), nil
		},
	}
	log := &mockTransitionLog{
		latestByBill: func(context.Context, string) (*models.TransitionRecord, error) {
			return prev, nil
		},
	}
	engine := testEngine(store, log)
	engine.now = func() time.Time { return now }

	result, err := engine.ApplyBatch(context.Background(), siteToRegional("b1"))
	require.NoError(t, err)
	require.Len(t, result.Successful, 1)

	assert.Equal(t, 2*time.Hour, result.Successful[0].Workflow.Duration)
}

func TestFirstRecordHasZeroDuration(t *testing.T) {
	store := &mockBillStore{
		getByID: func(context.Context, string) (*models.Bill, error) {
			return billInState("b1", models.StateSiteTeam), nil
		},
	}
	engine := testEngine(store, &mockTransitionLog{})

	result, err := engine.ApplyBatch(context.Background(), siteToRegional("b1"))
	require.NoError(t, err)
	require.Len(t, result.Successful, 1)
	assert.Zero(t, result.Successful[0].Workflow.Duration)
}

func TestStorageFaultDoesNotAbortBatch(t *testing.T) {
	store := &mockBillStore{
		getByID: func(_ context.Context, id string) (*models.Bill, error) {
			return billInState(id, models.StateSiteTeam), nil
		},
		applyTransition: func(_ context.Context, id string, _ []FieldWrite, _, _ int, _ string, _ time.Time) error {
			if id == "b1" {
				return errors.New("disk I/O error")
			}
			return nil
		},
	}
	log := &mockTransitionLog{}
	engine := testEngine(store, log)

	result, err := engine.ApplyBatch(context.Background(), siteToRegional("b1", "b2"))
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "b1", result.Failed[0].BillID)
	require.Len(t, result.Successful, 1)
	assert.Equal(t, "b2", result.Successful[0].BillID)

	// Both attempts were logged regardless of the snapshot fault.
	assert.Len(t, log.appended, 2)
}

func TestRerunningAppliedTransitionSucceedsAgain(t *testing.T) {
	bill := billInState("b1", models.StateSiteTeam)
	store := &mockBillStore{
		getByID: func(context.Context, string) (*models.Bill, error) { return bill, nil },
		applyTransition: func(_ context.Context, _ string, _ []FieldWrite, position, maxPosition int, state string, _ time.Time) error {
			bill.Position = position
			bill.MaxPosition = maxPosition
			bill.WorkflowState = state
			return nil
		},
	}
	engine := testEngine(store, &mockTransitionLog{})

	for i := 0; i < 2; i++ {
		result, err := engine.ApplyBatch(context.Background(), siteToRegional("b1"))
		require.NoError(t, err)
		require.Len(t, result.Successful, 1, "run %d", i)
	}

	// Matching is by role pair, not by current position, so a re-run lands
	// on the same values.
	assert.Equal(t, 2, bill.Position)
	assert.Equal(t, 2, bill.MaxPosition)
	assert.Equal(t, models.StateRegionalOffice, bill.WorkflowState)
}

func TestGetHistoryAfterSequentialTransitions(t *testing.T) {
	bill := billInState("b1", models.StateSiteTeam)
	store := &mockBillStore{
		getByID: func(context.Context, string) (*models.Bill, error) { return bill, nil },
		applyTransition: func(_ context.Context, _ string, _ []FieldWrite, position, maxPosition int, state string, _ time.Time) error {
			bill.Position = position
			bill.MaxPosition = maxPosition
			bill.WorkflowState = state
			return nil
		},
	}
	log := &mockTransitionLog{}
	log.latestByBill = func(context.Context, string) (*models.TransitionRecord, error) {
		if len(log.appended) == 0 {
			return nil, nil
		}
		return log.appended[len(log.appended)-1], nil
	}
	log.listByBill = func(context.Context, string) ([]*models.TransitionRecord, error) {
		return log.appended, nil
	}

	engine := testEngine(store, log)
	clock := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return clock }

	steps := []BatchRequest{
		siteToRegional("b1"),
		{
			FromUser: UserRef{ID: "u2", Name: "Ravi", Roles: []string{RoleRegionalOffice}},
			ToUser:   UserRef{ID: "u3", Name: "Meera", Roles: []string{RoleOversightSurveyor}},
			BillIDs:  []string{"b1"},
			Action:   models.ActionForward,
		},
		{
			FromUser: UserRef{ID: "u3", Name: "Meera", Roles: []string{RoleOversightSurveyor}},
			ToUser:   UserRef{ID: "u2", Name: "Ravi", Roles: []string{RoleRegionalOffice}},
			BillIDs:  []string{"b1"},
			Action:   models.ActionForward,
		},
	}
	for i, req := range steps {
		result, err := engine.ApplyBatch(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, result.Successful, 1, "step %d", i)
		clock = clock.Add(time.Hour)
	}

	recs, err := engine.GetHistory(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Zero(t, recs[0].Duration)
	for i, rec := range recs {
		assert.GreaterOrEqual(t, rec.Duration, time.Duration(0), "record %d", i)
		if i > 0 {
			assert.False(t, rec.CreatedAt.Before(recs[i-1].CreatedAt),
				"record %d out of order", i)
		}
	}
}

func TestRejectedBillBlocksEveryTransition(t *testing.T) {
	bill := billInState("b1", models.StateRegionalOffice)
	bill.SiteStatus = models.SiteStatusReject
	store := &mockBillStore{
		getByID: func(context.Context, string) (*models.Bill, error) { return bill, nil },
	}

	attempts := []BatchRequest{
		siteToRegional("b1"),
		{
			FromUser: UserRef{Roles: []string{RoleRegionalOffice}},
			ToUser:   UserRef{Roles: []string{RoleOversightSurveyor}},
			BillIDs:  []string{"b1"},
			Action:   models.ActionForward,
		},
		{
			FromUser: UserRef{Roles: []string{RoleRegionalOffice}},
			ToUser:   UserRef{Roles: []string{RoleSiteIncharge}},
			BillIDs:  []string{"b1"},
			Action:   models.ActionBackward,
		},
	}

	engine := testEngine(store, &mockTransitionLog{})
	for i, req := range attempts {
		result, err := engine.ApplyBatch(context.Background(), req)
		require.NoError(t, err, "attempt %d", i)
		require.Len(t, result.Failed, 1, "attempt %d", i)
		assert.Equal(t, "Bill is already rejected", result.Failed[0].Message, "attempt %d", i)
	}
}

func TestGetTimeInEachState(t *testing.T) {
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	recs := []*models.TransitionRecord{
		{State: models.StateRegionalOffice, CreatedAt: base},
		{State: models.StateOversightSurveyor, CreatedAt: base.Add(24 * time.Hour)},
		{State: models.StateRegionalOffice, CreatedAt: base.Add(72 * time.Hour)},
	}
	log := &mockTransitionLog{
		listByBill: func(context.Context, string) ([]*models.TransitionRecord, error) {
			return recs, nil
		},
	}
	engine := testEngine(&mockBillStore{}, log)
	engine.now = func() time.Time { return base.Add(96 * time.Hour) }

	times, err := engine.GetTimeInEachState(context.Background(), "b1")
	require.NoError(t, err)

	// Regional: first interval (24h) plus the open tail (24h).
	assert.Equal(t, 48*time.Hour, times[models.StateRegionalOffice])
	assert.Equal(t, 48*time.Hour, times[models.StateOversightSurveyor])
}

func TestGetStuckBillsExcludesTerminalStates(t *testing.T) {
	now := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	var gotBefore time.Time
	var gotExcluded []string

	store := &mockBillStore{
		findStuck: func(_ context.Context, before time.Time, excludeStates []string) ([]*models.Bill, error) {
			gotBefore = before
			gotExcluded = excludeStates
			return nil, nil
		},
	}
	engine := testEngine(store, &mockTransitionLog{})
	engine.now = func() time.Time { return now }

	_, err := engine.GetStuckBills(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, now.AddDate(0, 0, -7), gotBefore)
	assert.Equal(t, []string{models.StateCompleted, models.StateRejected}, gotExcluded)
}

func TestBuildHistory(t *testing.T) {
	ts := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	recs := []*models.TransitionRecord{
		{
			State:     models.StateRegionalOffice,
			ToUser:    models.Actor{Name: "Ravi"},
			Remarks:   "ok",
			Action:    models.ActionForward,
			CreatedAt: ts,
		},
	}

	entries := BuildHistory(recs)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StateRegionalOffice, entries[0].State)
	assert.Equal(t, "Ravi", entries[0].Actor)
	assert.Equal(t, "ok", entries[0].Comments)
	assert.Equal(t, ts, entries[0].Timestamp)
}
