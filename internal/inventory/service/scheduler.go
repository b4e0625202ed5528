package service

import (
	"context"
	"time"

	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/tenant"
)

// ScanScheduler runs expiry and low-stock scans periodically across all
// tenants. It queries public.tenants for active tenants and runs each scan
// with that tenant's context.
type ScanScheduler struct {
	scanner  *ExpiryScanner
	db       *database.DB
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewScanScheduler creates a new scan scheduler
func NewScanScheduler(scanner *ExpiryScanner, db *database.DB, interval time.Duration, log *logger.Logger) *ScanScheduler {
	return &ScanScheduler{
		scanner:  scanner,
		db:       db,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine.
func (s *ScanScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("scan scheduler started")

		// Run an initial scan immediately
		s.runScanCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("scan scheduler stopped")
				return
			case <-ticker.C:
				s.runScanCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *ScanScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

type activeTenant struct {
	ID     string `db:"id"`
	Slug   string `db:"slug"`
	Schema string `db:"schema_name"`
}

// runScanCycle queries all active tenants and runs scans for each
func (s *ScanScheduler) runScanCycle(ctx context.Context) {
	start := time.Now()

	tenants, err := s.getActiveTenants(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query active tenants")
		return
	}

	for _, t := range tenants {
		tenantCtx := tenant.WithTenantContext(ctx, t.ID, t.Slug, t.Schema)
		if err := s.scanner.ScanAll(tenantCtx); err != nil {
			s.logger.Error().Err(err).Str("tenant_id", t.ID).Msg("stock scan failed for tenant")
		}
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("tenant_count", len(tenants)).
		Msg("scan cycle completed")
}

// getActiveTenants queries active tenants from public.tenants. The table
// lives in the public schema without RLS, so no tenant context is needed.
func (s *ScanScheduler) getActiveTenants(ctx context.Context) ([]activeTenant, error) {
	var tenants []activeTenant
	query := `SELECT id, slug, schema_name FROM public.tenants WHERE is_active = TRUE`
	if err := s.db.DB.SelectContext(ctx, &tenants, query); err != nil {
		return nil, err
	}
	return tenants, nil
}
