package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"alshawaya/backend/internal/bill"
	"alshawaya/backend/internal/domain"
	"alshawaya/backend/internal/store"
	"alshawaya/backend/internal/xid"

	"github.com/google/uuid"
)

// StartBill opens a fresh in-memory bill session owned by the calling
// cashier. Nothing is persisted until the bill is finalized.
func (s *Service) StartBill(ctx context.Context, req domain.BillStartRequest) (domain.BillResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.BillResponse{}, fmt.Errorf("cashier identity required")
	}

	sess := &billSession{
		composer:     bill.NewComposer(),
		cashierID:    actor.Username,
		tableNumber:  strings.TrimSpace(req.TableNumber),
		customerName: strings.TrimSpace(req.CustomerName),
		waiterName:   strings.TrimSpace(req.WaiterName),
		startedAt:    time.Now().UTC(),
	}
	id := xid.New("bill")

	s.sessionMu.Lock()
	s.sessions[id] = sess
	s.sessionMu.Unlock()

	return s.billResponse(id, sess, nil), nil
}

func (s *Service) GetBill(ctx context.Context, billID string) (domain.BillResponse, error) {
	sess, err := s.session(ctx, billID)
	if err != nil {
		return domain.BillResponse{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.billResponse(billID, sess, nil), nil
}

func (s *Service) AddItemToBill(ctx context.Context, billID string, req domain.BillAddItemRequest) (domain.BillResponse, error) {
	sess, err := s.session(ctx, billID)
	if err != nil {
		return domain.BillResponse{}, err
	}

	item, err := s.repo.GetMenuItemByID(ctx, req.MenuItemID)
	if err != nil {
		return domain.BillResponse{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.composer.AddMenuItem(*item)
	return s.billResponse(billID, sess, nil), nil
}

// AddDealToBill expands the deal into the bill. Bundle lines whose
// menu item has since been deleted are skipped and reported back; the
// rest of the deal is still added.
func (s *Service) AddDealToBill(ctx context.Context, billID string, req domain.BillAddDealRequest) (domain.BillResponse, error) {
	sess, err := s.session(ctx, billID)
	if err != nil {
		return domain.BillResponse{}, err
	}

	deal, err := s.repo.GetDealByID(ctx, req.DealID)
	if err != nil {
		return domain.BillResponse{}, err
	}
	if !deal.IsActive {
		return domain.BillResponse{}, store.ErrValidation
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	_, skipped := sess.composer.AddDeal(*deal, func(menuItemID string) (*domain.MenuItem, bool) {
		item, lookupErr := s.repo.GetMenuItemByID(ctx, menuItemID)
		if lookupErr != nil {
			return nil, false
		}
		return item, true
	})
	return s.billResponse(billID, sess, skipped), nil
}

func (s *Service) UpdateBillItemQuantity(ctx context.Context, billID string, req domain.BillUpdateQuantityRequest) (domain.BillResponse, error) {
	sess, err := s.session(ctx, billID)
	if err != nil {
		return domain.BillResponse{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	entry, err := sess.composer.UpdateQuantity(req.BillItemID, req.Quantity, sess.cashierID)
	if err != nil {
		return domain.BillResponse{}, err
	}
	if entry != nil {
		entry.BillID = billID
		if logErr := s.repo.CreateDeletedItemLog(ctx, *entry); logErr != nil {
			log.Printf("[service] WARN: failed to record deleted item %s: %v", entry.ItemName, logErr)
		}
	}
	return s.billResponse(billID, sess, nil), nil
}

func (s *Service) RemoveBillItem(ctx context.Context, billID string, req domain.BillRemoveItemRequest) (domain.BillResponse, error) {
	sess, err := s.session(ctx, billID)
	if err != nil {
		return domain.BillResponse{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	entry := sess.composer.RemoveItem(req.BillItemID, sess.cashierID)
	if entry != nil {
		entry.BillID = billID
		if logErr := s.repo.CreateDeletedItemLog(ctx, *entry); logErr != nil {
			log.Printf("[service] WARN: failed to record deleted item %s: %v", entry.ItemName, logErr)
		}
	}
	return s.billResponse(billID, sess, nil), nil
}

// AbandonBill drops the session without persisting anything. The
// deletion log entries already written for removed lines stay.
func (s *Service) AbandonBill(ctx context.Context, billID string) error {
	if _, err := s.session(ctx, billID); err != nil {
		return err
	}

	s.sessionMu.Lock()
	delete(s.sessions, billID)
	s.sessionMu.Unlock()
	return nil
}

// FinalizeBill turns the session into a persisted sale. The sale is
// stamped with the open business day's date combined with the current
// wall-clock time, so a 2 AM sale still books to the prior day's
// trading session. The session survives a persistence failure so the
// cashier can retry.
func (s *Service) FinalizeBill(ctx context.Context, billID string, req domain.FinalizeBillRequest) (domain.Sale, error) {
	sess, err := s.session(ctx, billID)
	if err != nil {
		return domain.Sale{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.composer.Empty() {
		return domain.Sale{}, ErrEmptyBill
	}
	if req.TaxCents < 0 || req.DiscountCents < 0 {
		return domain.Sale{}, store.ErrValidation
	}

	businessDay, err := s.CurrentBusinessDay(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	day, err := time.ParseInLocation(domain.BusinessDayLayout, businessDay, time.Local)
	if err != nil {
		return domain.Sale{}, ErrInvalidBusinessDay
	}

	now := time.Now()
	createdAt := time.Date(day.Year(), day.Month(), day.Day(),
		now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.Local)

	items := sess.composer.Items()
	subtotal := sess.composer.Subtotal()
	sale := domain.Sale{
		ID:            uuid.NewString(),
		TableNumber:   sess.tableNumber,
		CustomerName:  sess.customerName,
		WaiterName:    sess.waiterName,
		Items:         items,
		SubtotalCents: subtotal,
		TaxCents:      req.TaxCents,
		DiscountCents: req.DiscountCents,
		TotalCents:    subtotal + req.TaxCents - req.DiscountCents,
		CreatedAt:     createdAt,
		BusinessDay:   businessDay,
		CashierID:     sess.cashierID,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.sessionMu.Lock()
	delete(s.sessions, billID)
	s.sessionMu.Unlock()

	s.logAudit(ctx, "sale_finalize", "sale", created.ID, fmt.Sprintf("business_day=%s,total=%d,items=%d", created.BusinessDay, created.TotalCents, len(created.Items)))
	return *created, nil
}

// session resolves a bill session and enforces ownership: only the
// cashier who started the bill may touch it.
func (s *Service) session(ctx context.Context, billID string) (*billSession, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("cashier identity required")
	}

	s.sessionMu.RLock()
	sess, exists := s.sessions[billID]
	s.sessionMu.RUnlock()

	if !exists {
		return nil, ErrBillNotFound
	}
	if sess.cashierID != actor.Username {
		return nil, ErrNotBillOwner
	}
	return sess, nil
}

func (s *Service) billResponse(billID string, sess *billSession, skipped []string) domain.BillResponse {
	return domain.BillResponse{
		BillID:        billID,
		TableNumber:   sess.tableNumber,
		CustomerName:  sess.customerName,
		WaiterName:    sess.waiterName,
		Items:         sess.composer.Items(),
		SubtotalCents: sess.composer.Subtotal(),
		StartedAt:     sess.startedAt,
		SkippedItems:  skipped,
	}
}
