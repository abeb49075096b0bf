package workflow

import (
	"context"
	"time"

	"github.com/krishnavp/billflow/internal/models"
	"go.uber.org/zap"
)

// BillStore is the bill snapshot store the engine mutates. GetByID returns
// (nil, nil) when the bill does not exist. ApplyTransition must persist the
// writes, position counters and state snapshot as a single atomic update.
type BillStore interface {
	GetByID(ctx context.Context, id string) (*models.Bill, error)
	ApplyTransition(ctx context.Context, id string, writes []FieldWrite, position, maxPosition int, state string, updatedAt time.Time) error
	CountByState(ctx context.Context) (map[string]int, error)
	FindStuck(ctx context.Context, before time.Time, excludeStates []string) ([]*models.Bill, error)
}

// TransitionLog is the append-only ledger of transition attempts.
// LatestByBill returns (nil, nil) when the bill has no records yet.
type TransitionLog interface {
	Append(ctx context.Context, rec *models.TransitionRecord) error
	ListByBill(ctx context.Context, billID string) ([]*models.TransitionRecord, error)
	LatestByBill(ctx context.Context, billID string) (*models.TransitionRecord, error)
}

// UserRef identifies one side of a batch request. Roles carries one or
// more roles; rule matching treats them as a set.
type UserRef struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"role"`
}

// BatchRequest moves a set of bills from one desk to another in a single
// call. Each bill is processed independently.
type BatchRequest struct {
	FromUser UserRef  `json:"fromUser"`
	ToUser   UserRef  `json:"toUser"`
	BillIDs  []string `json:"billIds"`
	Action   string   `json:"action"`
	Remarks  string   `json:"remarks"`
}

// BatchSuccess is one applied transition in a batch result.
type BatchSuccess struct {
	BillID   string                   `json:"billId"`
	Workflow *models.TransitionRecord `json:"workflow"`
}

// BatchFailure is one failed bill in a batch result.
type BatchFailure struct {
	BillID  string `json:"billId"`
	Message string `json:"message"`
}

// BatchResult partitions the requested bill ids into applied and failed.
type BatchResult struct {
	Successful []BatchSuccess `json:"successful"`
	Failed     []BatchFailure `json:"failed"`
}

// Engine orchestrates batch transitions: it loads bills, evaluates the
// rule table, appends to the transition log and applies the resulting
// mutation.
type Engine struct {
	rules  *RuleTable
	bills  BillStore
	log    TransitionLog
	access AccessConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a workflow engine over the given stores.
func NewEngine(rules *RuleTable, bills BillStore, log TransitionLog, access AccessConfig, logger *zap.Logger) *Engine {
	return &Engine{
		rules:  rules,
		bills:  bills,
		log:    log,
		access: access,
		logger: logger,
		now:    time.Now,
	}
}

// Access returns the engine's access configuration.
func (e *Engine) Access() AccessConfig {
	return e.access
}

// ApplyBatch processes each bill id independently; there is no
// all-or-nothing atomicity across the batch. A malformed request fails the
// whole call before any per-item processing.
func (e *Engine) ApplyBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if len(req.BillIDs) == 0 ||
		len(req.FromUser.Roles) == 0 ||
		len(req.ToUser.Roles) == 0 ||
		(req.Action != models.ActionForward && req.Action != models.ActionBackward) {
		return nil, ErrInvalidRequest
	}

	fromRoles := NewRoleSet(req.FromUser.Roles...)
	toRoles := NewRoleSet(req.ToUser.Roles...)

	result := &BatchResult{
		Successful: []BatchSuccess{},
		Failed:     []BatchFailure{},
	}

	for _, billID := range req.BillIDs {
		item := e.applyOne(ctx, billID, req, fromRoles, toRoles)
		if item.failure != "" {
			result.Failed = append(result.Failed, BatchFailure{BillID: billID, Message: item.failure})
		} else {
			result.Successful = append(result.Successful, BatchSuccess{BillID: billID, Workflow: item.record})
		}
	}

	e.logger.Info("Processed batch transition",
		zap.Int("requested", len(req.BillIDs)),
		zap.Int("successful", len(result.Successful)),
		zap.Int("failed", len(result.Failed)),
		zap.String("action", req.Action))

	return result, nil
}

type itemResult struct {
	record  *models.TransitionRecord
	failure string
}

func (e *Engine) applyOne(ctx context.Context, billID string, req BatchRequest, fromRoles, toRoles RoleSet) itemResult {
	bill, err := e.bills.GetByID(ctx, billID)
	if err != nil {
		e.logger.Error("Failed to load bill", zap.String("bill_id", billID), zap.Error(err))
		return itemResult{failure: err.Error()}
	}
	if bill == nil {
		return itemResult{failure: "Bill not found"}
	}
	if bill.IsRejected() {
		return itemResult{failure: "Bill is already rejected"}
	}

	now := e.now()

	last, err := e.log.LatestByBill(ctx, billID)
	if err != nil {
		e.logger.Error("Failed to read transition log", zap.String("bill_id", billID), zap.Error(err))
		return itemResult{failure: err.Error()}
	}
	var duration time.Duration
	if last != nil {
		duration = now.Sub(last.CreatedAt)
	}

	outcome := e.rules.Evaluate(bill, fromRoles, toRoles, req.ToUser.Name, req.Action, req.Remarks, now)

	// Every attempt is recorded, including attempts that match no rule.
	recState := bill.WorkflowState
	if outcome.Kind == OutcomeApplied {
		recState = outcome.NewState
	}
	rec := &models.TransitionRecord{
		BillID: billID,
		FromUser: models.Actor{
			ID:   req.FromUser.ID,
			Name: req.FromUser.Name,
			Role: fromRoles.First(req.FromUser.Roles),
		},
		ToUser: models.Actor{
			ID:   req.ToUser.ID,
			Name: req.ToUser.Name,
			Role: toRoles.First(req.ToUser.Roles),
		},
		Action:    req.Action,
		Remarks:   req.Remarks,
		Duration:  duration,
		State:     recState,
		CreatedAt: now,
	}
	if err := e.log.Append(ctx, rec); err != nil {
		e.logger.Error("Failed to append transition record", zap.String("bill_id", billID), zap.Error(err))
		return itemResult{failure: err.Error()}
	}

	switch outcome.Kind {
	case OutcomeRejected:
		return itemResult{failure: outcome.Reason}
	case OutcomeNoRule:
		return itemResult{failure: ErrNoMatchingRule.Error()}
	}

	if err := e.bills.ApplyTransition(ctx, billID, outcome.Writes, outcome.NewPosition, outcome.NewMaxPosition, outcome.NewState, now); err != nil {
		// The log record stays: the attempt happened even though the
		// snapshot update did not land.
		e.logger.Error("Failed to update bill workflow",
			zap.String("bill_id", billID), zap.Error(err))
		return itemResult{failure: err.Error()}
	}

	e.logger.Info("Applied workflow transition",
		zap.String("bill_id", billID),
		zap.String("state", outcome.NewState),
		zap.Int("position", outcome.NewPosition),
		zap.String("action", req.Action))

	return itemResult{record: rec}
}

// GetHistory returns the full transition record list for a bill, oldest
// first.
func (e *Engine) GetHistory(ctx context.Context, billID string) ([]*models.TransitionRecord, error) {
	return e.log.ListByBill(ctx, billID)
}

// BuildHistory rebuilds the display history from the transition log. The
// log is the source of truth; this view is derived on read.
func BuildHistory(recs []*models.TransitionRecord) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, HistoryEntry{
			State:     rec.State,
			Timestamp: rec.CreatedAt,
			Actor:     rec.ToUser.Name,
			Comments:  rec.Remarks,
			Action:    rec.Action,
		})
	}
	return entries
}

// GetCurrentStateCounts groups non-deleted bills by their named workflow
// state.
func (e *Engine) GetCurrentStateCounts(ctx context.Context) (map[string]int, error) {
	return e.bills.CountByState(ctx)
}

// GetStuckBills returns bills whose last update is older than the
// threshold and whose state is not terminal.
func (e *Engine) GetStuckBills(ctx context.Context, thresholdDays int) ([]*models.Bill, error) {
	before := e.now().AddDate(0, 0, -thresholdDays)
	return e.bills.FindStuck(ctx, before, models.TerminalStates)
}

// GetTimeInEachState reconstructs per-state residence time from the
// transition log. Each delta between consecutive records is attributed to
// the state entered by the earlier record; the interval from the last
// record to now is attributed to the current state.
func (e *Engine) GetTimeInEachState(ctx context.Context, billID string) (map[string]time.Duration, error) {
	recs, err := e.log.ListByBill(ctx, billID)
	if err != nil {
		return nil, err
	}

	times := make(map[string]time.Duration)
	for i := 0; i < len(recs)-1; i++ {
		times[recs[i].State] += recs[i+1].CreatedAt.Sub(recs[i].CreatedAt)
	}
	if n := len(recs); n > 0 {
		times[recs[n-1].State] += e.now().Sub(recs[n-1].CreatedAt)
	}
	return times, nil
}
