package service

import (
	"context"
	"fmt"
	"time"

	"alshawaya/backend/internal/domain"
	"alshawaya/backend/internal/reconcile"
	"alshawaya/backend/internal/store"
)

func (s *Service) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) SalesSummary(ctx context.Context, filter store.SaleFilter) (domain.SalesSummary, error) {
	count, total, err := s.repo.SumSales(ctx, filter)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	return domain.SalesSummary{
		BusinessDayFrom: filter.BusinessDayFrom,
		BusinessDayTo:   filter.BusinessDayTo,
		CashierID:       filter.CashierID,
		SaleCount:       count,
		TotalCents:      total,
	}, nil
}

// ReturnSale removes a finalized sale outright. There is no voided
// state to resurrect from; the audit log is the only trace left.
func (s *Service) ReturnSale(ctx context.Context, id string, reason string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSale(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "sale_return", "sale", id,
		fmt.Sprintf("business_day=%s,total=%d,cashier=%s,reason=%s", sale.BusinessDay, sale.TotalCents, sale.CashierID, reason))
	return nil
}

// PurgeSalesBefore deletes every sale with a business day strictly
// before the cutoff.
func (s *Service) PurgeSalesBefore(ctx context.Context, businessDay string) (int64, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return 0, fmt.Errorf("admin role required")
	}
	if _, err := time.Parse(domain.BusinessDayLayout, businessDay); err != nil {
		return 0, ErrInvalidBusinessDay
	}

	n, err := s.repo.DeleteSalesBefore(ctx, businessDay)
	if err != nil {
		return 0, err
	}
	s.logAudit(ctx, "sales_purge", "sale", "", fmt.Sprintf("before=%s,deleted=%d", businessDay, n))
	return n, nil
}

// ResetAllData wipes the catalog, sales and deletion logs and resets
// the business day to today. Seed users and audit history survive.
func (s *Service) ResetAllData(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	if _, err := s.repo.DeleteAllSales(ctx); err != nil {
		return err
	}
	if _, err := s.repo.PurgeDeletedItemLogs(ctx); err != nil {
		return err
	}
	if _, err := s.repo.DeleteAllDeals(ctx); err != nil {
		return err
	}
	if _, err := s.repo.DeleteAllMenuItems(ctx); err != nil {
		return err
	}
	today := time.Now().Format(domain.BusinessDayLayout)
	if err := s.repo.UpsertAppSetting(ctx, domain.SettingCurrentBusinessDay, today); err != nil {
		return err
	}

	s.sessionMu.Lock()
	s.sessions = make(map[string]*billSession)
	s.sessionMu.Unlock()

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "data_reset", "application", "", fmt.Sprintf("business_day=%s", today))
	return nil
}

func (s *Service) ListDeletedItemLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.DeletedItemLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListDeletedItemLogs(ctx, from, to, limit)
}

func (s *Service) PurgeDeletedItemLogs(ctx context.Context) (int64, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return 0, fmt.Errorf("admin role required")
	}

	n, err := s.repo.PurgeDeletedItemLogs(ctx)
	if err != nil {
		return 0, err
	}
	s.logAudit(ctx, "deleted_item_logs_purge", "deleted_item_log", "", fmt.Sprintf("deleted=%d", n))
	return n, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// ReconciliationReport compares a cashier's declared end-of-day
// amounts against recorded sales for the given business day range.
// System sales come from a single aggregate query; declared amounts
// are parsed forgivingly, with unreadable fields counted as zero.
func (s *Service) ReconciliationReport(ctx context.Context, req domain.ReconciliationRequest) (domain.ReconciliationReport, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.ReconciliationReport{}, fmt.Errorf("admin role required")
	}

	if req.CashierID == "" {
		return domain.ReconciliationReport{}, store.ErrValidation
	}
	if _, err := time.Parse(domain.BusinessDayLayout, req.BusinessDayFrom); err != nil {
		return domain.ReconciliationReport{}, ErrInvalidBusinessDay
	}
	if _, err := time.Parse(domain.BusinessDayLayout, req.BusinessDayTo); err != nil {
		return domain.ReconciliationReport{}, ErrInvalidBusinessDay
	}

	count, total, err := s.repo.SumSales(ctx, store.SaleFilter{
		BusinessDayFrom: req.BusinessDayFrom,
		BusinessDayTo:   req.BusinessDayTo,
		CashierID:       req.CashierID,
	})
	if err != nil {
		return domain.ReconciliationReport{}, err
	}

	return reconcile.Compute(req, count, total, time.Now()), nil
}
