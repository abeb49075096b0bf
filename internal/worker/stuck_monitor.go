package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/krishnavp/billflow/internal/workflow"
	"go.uber.org/zap"
)

// StuckBillMonitor periodically scans for bills that have not moved past
// the configured age threshold and logs them for follow-up.
type StuckBillMonitor struct {
	engine *workflow.Engine
	logger *zap.Logger

	checkInterval time.Duration
	thresholdDays int

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewStuckBillMonitor creates a stuck-bill monitor.
func NewStuckBillMonitor(engine *workflow.Engine, checkInterval time.Duration, thresholdDays int, logger *zap.Logger) *StuckBillMonitor {
	return &StuckBillMonitor{
		engine:        engine,
		logger:        logger,
		checkInterval: checkInterval,
		thresholdDays: thresholdDays,
	}
}

// Start starts the monitor loop.
func (m *StuckBillMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("stuck bill monitor is already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.isRunning = true

	m.logger.Info("StuckBillMonitor started",
		zap.Duration("check_interval", m.checkInterval),
		zap.Int("threshold_days", m.thresholdDays))

	go m.loop()

	return nil
}

// Stop stops the monitor loop.
func (m *StuckBillMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return
	}

	m.isRunning = false
	if m.cancel != nil {
		m.cancel()
	}

	m.logger.Info("StuckBillMonitor stopped")
}

// Name returns the worker name for identification.
func (m *StuckBillMonitor) Name() string {
	return "StuckBillMonitor"
}

func (m *StuckBillMonitor) loop() {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	// Check immediately on start.
	m.check()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Debug("Monitor loop context cancelled")
			return

		case <-ticker.C:
			m.check()
		}
	}
}

func (m *StuckBillMonitor) check() {
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	bills, err := m.engine.GetStuckBills(ctx, m.thresholdDays)
	if err != nil {
		m.logger.Error("Failed to query stuck bills", zap.Error(err))
		return
	}

	if len(bills) == 0 {
		m.logger.Debug("No stuck bills found")
		return
	}

	for _, bill := range bills {
		m.logger.Warn("Bill stuck past threshold",
			zap.String("bill_id", bill.ID),
			zap.String("serial_no", bill.SerialNo),
			zap.String("state", bill.WorkflowState),
			zap.Int("position", bill.Position),
			zap.Time("last_updated", bill.LastUpdated))
	}

	m.logger.Info("Stuck bill scan completed",
		zap.Int("stuck", len(bills)),
		zap.Int("threshold_days", m.thresholdDays))
}
