package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/krishnavp/billflow/internal/models"
	"github.com/krishnavp/billflow/internal/report"
	"github.com/krishnavp/billflow/internal/service"
	"github.com/krishnavp/billflow/internal/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine      *workflow.Engine
	billService *service.BillService
	projector   *report.Projector

	// stuckThresholdDays bounds the stuck-bill portion of the stats view.
	stuckThresholdDays int

	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine *workflow.Engine, billService *service.BillService, projector *report.Projector, stuckThresholdDays int, logger Logger) *Handlers {
	return &Handlers{
		engine:             engine,
		billService:        billService,
		projector:          projector,
		stuckThresholdDays: stuckThresholdDays,
		logger:             logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// roleList accepts a single role string or an array of roles.
type roleList []string

func (r *roleList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = roleList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*r = roleList(many)
	return nil
}

// userPayload is one side of a batch transition request.
type userPayload struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Role roleList `json:"role"`
}

// batchPayload is the wire form of a batch transition request.
type batchPayload struct {
	FromUser userPayload `json:"fromUser"`
	ToUser   userPayload `json:"toUser"`
	BillIDs  []string    `json:"billIds"`
	Action   string      `json:"action"`
	Remarks  string      `json:"remarks"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// BatchTransition handles POST /api/v1/workflow/batch
func (h *Handlers) BatchTransition(c *gin.Context) {
	var payload batchPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Error("Invalid batch payload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	req := workflow.BatchRequest{
		FromUser: workflow.UserRef{ID: payload.FromUser.ID, Name: payload.FromUser.Name, Roles: payload.FromUser.Role},
		ToUser:   workflow.UserRef{ID: payload.ToUser.ID, Name: payload.ToUser.Name, Roles: payload.ToUser.Role},
		BillIDs:  payload.BillIDs,
		Action:   payload.Action,
		Remarks:  payload.Remarks,
	}

	result, err := h.engine.ApplyBatch(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   err.Error(),
			})
			return
		}
		h.logger.Error("Batch transition failed", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to process batch",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// GetHistory handles GET /api/v1/workflow/bills/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	billID := c.Param("id")

	recs, err := h.engine.GetHistory(c.Request.Context(), billID)
	if err != nil {
		h.logger.Error("Failed to get history", "bill_id", billID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve history",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"billId":      billID,
			"transitions": recs,
			"history":     workflow.BuildHistory(recs),
		},
	})
}

// GetTimeline handles GET /api/v1/workflow/bills/:id/timeline
func (h *Handlers) GetTimeline(c *gin.Context) {
	billID := c.Param("id")

	times, err := h.engine.GetTimeInEachState(c.Request.Context(), billID)
	if err != nil {
		h.logger.Error("Failed to get timeline", "bill_id", billID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve timeline",
		})
		return
	}

	millis := make(map[string]int64, len(times))
	for state, d := range times {
		millis[state] = d.Milliseconds()
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"billId":      billID,
			"timeInState": millis,
		},
	})
}

// GetStats handles GET /api/v1/workflow/stats
func (h *Handlers) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := h.engine.GetCurrentStateCounts(ctx)
	if err != nil {
		h.logger.Error("Failed to get state counts", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve stats",
		})
		return
	}

	stuck, err := h.engine.GetStuckBills(ctx, h.stuckThresholdDays)
	if err != nil {
		h.logger.Error("Failed to get stuck bills", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve stats",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"stateCounts":        counts,
			"stuckBills":         stuck,
			"stuckThresholdDays": h.stuckThresholdDays,
		},
	})
}

// BillsAboveLevel handles GET /api/v1/workflow/above-level/:role
func (h *Handlers) BillsAboveLevel(c *gin.Context) {
	role := c.Param("role")

	bills, err := h.projector.BillsAboveLevel(c.Request.Context(), role)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    bills,
	})
}

// CreateBill handles POST /api/v1/bills
func (h *Handlers) CreateBill(c *gin.Context) {
	var req service.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid bill payload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	bill, err := h.billService.CreateBill(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidBill) {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   err.Error(),
			})
			return
		}
		h.logger.Error("Failed to create bill", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to create bill",
		})
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    bill,
	})
}

// GetBill handles GET /api/v1/bills/:id
func (h *Handlers) GetBill(c *gin.Context) {
	bill, err := h.billService.GetBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, workflow.ErrBillNotFound) {
			c.JSON(http.StatusNotFound, Response{
				Success: false,
				Error:   "bill not found",
			})
			return
		}
		h.logger.Error("Failed to get bill", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve bill",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    bill,
	})
}

// updateFieldPayload is the wire form of a team field update.
type updateFieldPayload struct {
	Role  roleList    `json:"role"`
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// UpdateBillField handles PATCH /api/v1/bills/:id/fields
func (h *Handlers) UpdateBillField(c *gin.Context) {
	var payload updateFieldPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Field == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	// Date values arrive as RFC3339 strings; store them as timestamps.
	value := payload.Value
	if s, ok := value.(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			value = t
		}
	}

	err := h.billService.UpdateTeamField(c.Request.Context(), c.Param("id"), payload.Role, payload.Field, value)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, Response{Success: true})
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Error:   err.Error(),
		})
	case errors.Is(err, workflow.ErrBillNotFound):
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "bill not found",
		})
	default:
		h.logger.Error("Failed to update bill field", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to update field",
		})
	}
}

// correctBillDatePayload is the wire form of a fiscal-year correction.
type correctBillDatePayload struct {
	BillDate time.Time `json:"billDate" binding:"required"`
}

// CorrectBillDate handles PATCH /api/v1/bills/:id/bill-date
func (h *Handlers) CorrectBillDate(c *gin.Context) {
	var payload correctBillDatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	bill, err := h.billService.CorrectFiscalYear(c.Request.Context(), c.Param("id"), payload.BillDate)
	if err != nil {
		if errors.Is(err, workflow.ErrBillNotFound) {
			c.JSON(http.StatusNotFound, Response{
				Success: false,
				Error:   "bill not found",
			})
			return
		}
		h.logger.Error("Failed to correct bill date", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to correct bill date",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    bill,
	})
}

// receiveBillPayload is the wire form of a bill receipt.
type receiveBillPayload struct {
	Role       roleList `json:"role"`
	ReceivedBy string   `json:"receivedBy"`
}

// ReceiveBill handles POST /api/v1/bills/:id/receive
func (h *Handlers) ReceiveBill(c *gin.Context) {
	var payload receiveBillPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	bill, err := h.billService.ReceiveBill(c.Request.Context(), c.Param("id"), payload.Role, payload.ReceivedBy)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, Response{Success: true, Data: bill})
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Error:   err.Error(),
		})
	case errors.Is(err, workflow.ErrBillNotFound):
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "bill not found",
		})
	default:
		h.logger.Error("Failed to receive bill", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to receive bill",
		})
	}
}

// UpsertVendor handles PUT /api/v1/vendors
func (h *Handlers) UpsertVendor(c *gin.Context) {
	var vendor models.VendorMaster
	if err := c.ShouldBindJSON(&vendor); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	if err := h.billService.UpsertVendor(c.Request.Context(), &vendor); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    vendor,
	})
}

// RunReport handles GET /api/v1/reports/:view
func (h *Handlers) RunReport(c *gin.Context) {
	filter := report.Filter{Region: c.Query("region")}

	if from, ok := parseDateQuery(c.Query("from")); ok {
		filter.From = &from
	}
	if to, ok := parseDateQuery(c.Query("to")); ok {
		filter.To = &to
	}

	result, err := h.projector.Run(c.Request.Context(), c.Param("view"), filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

func parseDateQuery(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
