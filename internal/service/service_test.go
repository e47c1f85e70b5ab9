package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"alshawaya/backend/internal/bill"
	"alshawaya/backend/internal/cache"
	"alshawaya/backend/internal/domain"
	"alshawaya/backend/internal/store"
	"alshawaya/backend/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopCatalogCache{}, 5*time.Second), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func cashierCtx(username string) context.Context {
	return WithActor(context.Background(), domain.Actor{Username: username, Role: domain.RoleCashier})
}

func menuItemByCode(t *testing.T, svc *Service, code string) domain.MenuItem {
	t.Helper()
	items, err := svc.ListMenuItems(context.Background())
	if err != nil {
		t.Fatalf("list menu items failed: %v", err)
	}
	for _, item := range items {
		if item.Code == code {
			return item
		}
	}
	t.Fatalf("menu item with code %s not seeded", code)
	return domain.MenuItem{}
}

// fakeCatalogCache stores the latest snapshot and records how the
// service drives it.
type fakeCatalogCache struct {
	snapshot      *domain.CatalogResponse
	lastTTL       time.Duration
	sets          int
	invalidations int
}

func (c *fakeCatalogCache) Get(_ context.Context, _ string) (*domain.CatalogResponse, bool, error) {
	if c.snapshot == nil {
		return nil, false, nil
	}
	return c.snapshot, true, nil
}

func (c *fakeCatalogCache) Set(_ context.Context, _ string, value *domain.CatalogResponse, ttl time.Duration) error {
	c.snapshot = value
	c.lastTTL = ttl
	c.sets++
	return nil
}

func (c *fakeCatalogCache) Invalidate(_ context.Context, _ string) error {
	c.snapshot = nil
	c.invalidations++
	return nil
}

func seededDeal(t *testing.T, svc *Service) domain.Deal {
	t.Helper()
	deals, err := svc.ListDeals(context.Background())
	if err != nil {
		t.Fatalf("list deals failed: %v", err)
	}
	if len(deals) == 0 {
		t.Fatalf("expected a seeded deal")
	}
	return deals[0]
}

func TestStartBillRequiresActor(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.StartBill(context.Background(), domain.BillStartRequest{})
	if err == nil {
		t.Fatalf("expected bill start without an actor to fail")
	}
}

func TestStartBillStampsStartTime(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("cashier1")

	before := time.Now().UTC()
	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	if started.StartedAt.IsZero() || started.StartedAt.Before(before) {
		t.Fatalf("expected start time at or after %v, got %v", before, started.StartedAt)
	}

	fetched, err := svc.GetBill(ctx, started.BillID)
	if err != nil {
		t.Fatalf("get bill failed: %v", err)
	}
	if !fetched.StartedAt.Equal(started.StartedAt) {
		t.Fatalf("expected stable start time %v, got %v", started.StartedAt, fetched.StartedAt)
	}
}

func TestCatalogServesCachedSnapshot(t *testing.T) {
	repo := memory.NewSeeded()
	fake := &fakeCatalogCache{}
	svc := New(repo, fake, time.Minute)
	ctx := cashierCtx("cashier1")

	first, err := svc.Catalog(ctx)
	if err != nil {
		t.Fatalf("first catalog fetch failed: %v", err)
	}
	if fake.sets != 1 {
		t.Fatalf("expected one cache write, got %d", fake.sets)
	}
	if fake.lastTTL != time.Minute {
		t.Fatalf("expected configured ttl on cache write, got %v", fake.lastTTL)
	}

	// A direct repo change is invisible while the snapshot is cached.
	if err := repo.DeleteMenuItem(context.Background(), first.MenuItems[0].ID); err != nil {
		t.Fatalf("delete menu item failed: %v", err)
	}
	second, err := svc.Catalog(ctx)
	if err != nil {
		t.Fatalf("second catalog fetch failed: %v", err)
	}
	if len(second.MenuItems) != len(first.MenuItems) {
		t.Fatalf("expected cached snapshot with %d items, got %d", len(first.MenuItems), len(second.MenuItems))
	}
	if fake.sets != 1 {
		t.Fatalf("expected cache hit without rewrite, got %d writes", fake.sets)
	}

	if _, err := svc.CreateMenuItem(adminCtx(), domain.MenuItemCreateRequest{Code: "601", Name: "Karak Tea", PriceCents: 8000, Category: "Beverages"}); err != nil {
		t.Fatalf("create menu item failed: %v", err)
	}
	if fake.invalidations == 0 {
		t.Fatalf("expected admin write to invalidate the cache")
	}
	third, err := svc.Catalog(ctx)
	if err != nil {
		t.Fatalf("third catalog fetch failed: %v", err)
	}
	if len(third.MenuItems) != len(first.MenuItems) {
		t.Fatalf("expected refreshed snapshot with %d items, got %d", len(first.MenuItems), len(third.MenuItems))
	}
	found := false
	for _, item := range third.MenuItems {
		if item.Code == "601" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected refreshed snapshot to include the new item")
	}
}

func TestAddItemMergesDuplicateLines(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("cashier1")
	item := menuItemByCode(t, svc, "101")

	started, err := svc.StartBill(ctx, domain.BillStartRequest{TableNumber: "T4"})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}

	if _, err := svc.AddItemToBill(ctx, started.BillID, domain.BillAddItemRequest{MenuItemID: item.ID}); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	resp, err := svc.AddItemToBill(ctx, started.BillID, domain.BillAddItemRequest{MenuItemID: item.ID})
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	if len(resp.Items) != 1 {
		t.Fatalf("expected duplicate adds to merge into 1 line, got %d", len(resp.Items))
	}
	if resp.Items[0].Quantity != 2 {
		t.Fatalf("expected merged quantity 2, got %d", resp.Items[0].Quantity)
	}
	if resp.SubtotalCents != 2*item.PriceCents {
		t.Fatalf("expected subtotal %d, got %d", 2*item.PriceCents, resp.SubtotalCents)
	}
}

func TestAddDealFreezesLinePrices(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("cashier1")
	deal := seededDeal(t, svc)

	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	resp, err := svc.AddDealToBill(ctx, started.BillID, domain.BillAddDealRequest{DealID: deal.ID})
	if err != nil {
		t.Fatalf("add deal failed: %v", err)
	}
	if len(resp.Items) != len(deal.Items) {
		t.Fatalf("expected %d deal lines, got %d", len(deal.Items), len(resp.Items))
	}
	subtotalBefore := resp.SubtotalCents
	if subtotalBefore != deal.CalculatedTotalCents {
		t.Fatalf("expected subtotal %d, got %d", deal.CalculatedTotalCents, subtotalBefore)
	}
	for _, line := range resp.Items {
		if line.DealContext == nil {
			t.Fatalf("expected deal context on line %s", line.Name)
		}
	}

	// Raising the underlying menu price must not touch the bill lines.
	newPrice := int64(999999)
	item := menuItemByCode(t, svc, "101")
	if _, err := svc.UpdateMenuItem(adminCtx(), item.ID, domain.MenuItemUpdateRequest{PriceCents: &newPrice}); err != nil {
		t.Fatalf("update menu item failed: %v", err)
	}

	after, err := svc.GetBill(ctx, started.BillID)
	if err != nil {
		t.Fatalf("get bill failed: %v", err)
	}
	if after.SubtotalCents != subtotalBefore {
		t.Fatalf("expected subtotal frozen at %d, got %d", subtotalBefore, after.SubtotalCents)
	}
}

func TestUpdateQuantityToZeroRemovesLineAndLogs(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx("cashier1")
	item := menuItemByCode(t, svc, "201")

	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	withItem, err := svc.AddItemToBill(ctx, started.BillID, domain.BillAddItemRequest{MenuItemID: item.ID})
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}

	resp, err := svc.UpdateBillItemQuantity(ctx, started.BillID, domain.BillUpdateQuantityRequest{
		BillItemID: withItem.Items[0].BillItemID,
		Quantity:   0,
	})
	if err != nil {
		t.Fatalf("update quantity failed: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("expected line removed, got %d lines", len(resp.Items))
	}

	logs, err := repo.ListDeletedItemLogs(context.Background(), time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list deleted item logs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 deletion log, got %d", len(logs))
	}
	if logs[0].Reason != domain.RemovalReasonQuantityZero {
		t.Fatalf("unexpected removal reason: %s", logs[0].Reason)
	}
	if logs[0].RemovedByCashierID != "cashier1" {
		t.Fatalf("unexpected cashier on log: %s", logs[0].RemovedByCashierID)
	}
	if logs[0].BillID != started.BillID {
		t.Fatalf("expected log bound to bill %s, got %s", started.BillID, logs[0].BillID)
	}
}

func TestRemoveItemLogsCashierRemoval(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx("cashier1")
	item := menuItemByCode(t, svc, "401")

	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	withItem, err := svc.AddItemToBill(ctx, started.BillID, domain.BillAddItemRequest{MenuItemID: item.ID})
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}

	if _, err := svc.RemoveBillItem(ctx, started.BillID, domain.BillRemoveItemRequest{
		BillItemID: withItem.Items[0].BillItemID,
	}); err != nil {
		t.Fatalf("remove item failed: %v", err)
	}

	logs, err := repo.ListDeletedItemLogs(context.Background(), time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list deleted item logs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Reason != domain.RemovalReasonRemoved {
		t.Fatalf("expected a %q log entry, got %+v", domain.RemovalReasonRemoved, logs)
	}
}

func TestDealLineQuantityIsLocked(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("cashier1")
	deal := seededDeal(t, svc)

	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	resp, err := svc.AddDealToBill(ctx, started.BillID, domain.BillAddDealRequest{DealID: deal.ID})
	if err != nil {
		t.Fatalf("add deal failed: %v", err)
	}

	_, err = svc.UpdateBillItemQuantity(ctx, started.BillID, domain.BillUpdateQuantityRequest{
		BillItemID: resp.Items[0].BillItemID,
		Quantity:   resp.Items[0].Quantity + 1,
	})
	if !errors.Is(err, bill.ErrDealQuantityLock) {
		t.Fatalf("expected deal quantity lock error, got %v", err)
	}
}

func TestFinalizeEmptyBillFails(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("cashier1")

	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}

	_, err = svc.FinalizeBill(ctx, started.BillID, domain.FinalizeBillRequest{})
	if !errors.Is(err, ErrEmptyBill) {
		t.Fatalf("expected ErrEmptyBill, got %v", err)
	}

	sales, err := svc.ListSales(adminCtx(), store.SaleFilter{})
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sale persisted for empty bill")
	}

	// The session must survive the failed finalize.
	if _, err := svc.GetBill(ctx, started.BillID); err != nil {
		t.Fatalf("expected session to remain after failed finalize: %v", err)
	}
}

func TestFinalizeStampsOpenBusinessDay(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx("cashier1")
	item := menuItemByCode(t, svc, "301")

	// Pin the open business day to yesterday to mimic a past-midnight sale.
	yesterday := time.Now().AddDate(0, 0, -1).Format(domain.BusinessDayLayout)
	if err := repo.UpsertAppSetting(context.Background(), domain.SettingCurrentBusinessDay, yesterday); err != nil {
		t.Fatalf("upsert setting failed: %v", err)
	}

	started, err := svc.StartBill(ctx, domain.BillStartRequest{TableNumber: "T1", CustomerName: "Walk-in"})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	if _, err := svc.AddItemToBill(ctx, started.BillID, domain.BillAddItemRequest{MenuItemID: item.ID}); err != nil {
		t.Fatalf("add item failed: %v", err)
	}

	sale, err := svc.FinalizeBill(ctx, started.BillID, domain.FinalizeBillRequest{TaxCents: 500, DiscountCents: 100})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if sale.BusinessDay != yesterday {
		t.Fatalf("expected business day %s, got %s", yesterday, sale.BusinessDay)
	}
	if got := sale.CreatedAt.Format(domain.BusinessDayLayout); got != yesterday {
		t.Fatalf("expected created_at dated %s, got %s", yesterday, got)
	}
	if sale.TotalCents != item.PriceCents+500-100 {
		t.Fatalf("unexpected total: %d", sale.TotalCents)
	}
	if sale.CashierID != "cashier1" {
		t.Fatalf("unexpected cashier id: %s", sale.CashierID)
	}

	// Finalize clears the session.
	if _, err := svc.GetBill(ctx, started.BillID); !errors.Is(err, ErrBillNotFound) {
		t.Fatalf("expected ErrBillNotFound after finalize, got %v", err)
	}
}

func TestFinalizeRejectsNegativeAdjustments(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("cashier1")
	item := menuItemByCode(t, svc, "101")

	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	if _, err := svc.AddItemToBill(ctx, started.BillID, domain.BillAddItemRequest{MenuItemID: item.ID}); err != nil {
		t.Fatalf("add item failed: %v", err)
	}

	_, err = svc.FinalizeBill(ctx, started.BillID, domain.FinalizeBillRequest{TaxCents: -1})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for negative tax, got %v", err)
	}
}

func TestBillOwnershipEnforced(t *testing.T) {
	svc, _ := newTestService()

	started, err := svc.StartBill(cashierCtx("cashier1"), domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}

	_, err = svc.GetBill(cashierCtx("cashier2"), started.BillID)
	if !errors.Is(err, ErrNotBillOwner) {
		t.Fatalf("expected ErrNotBillOwner, got %v", err)
	}
}

func TestAbandonBillDropsSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("cashier1")

	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	if err := svc.AbandonBill(ctx, started.BillID); err != nil {
		t.Fatalf("abandon failed: %v", err)
	}
	if _, err := svc.GetBill(ctx, started.BillID); !errors.Is(err, ErrBillNotFound) {
		t.Fatalf("expected ErrBillNotFound after abandon, got %v", err)
	}
}

func TestAdvanceBusinessDayIsNotIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	first, err := svc.AdvanceBusinessDay(ctx)
	if err != nil {
		t.Fatalf("first advance failed: %v", err)
	}
	second, err := svc.AdvanceBusinessDay(ctx)
	if err != nil {
		t.Fatalf("second advance failed: %v", err)
	}

	firstDay, _ := time.Parse(domain.BusinessDayLayout, first)
	secondDay, _ := time.Parse(domain.BusinessDayLayout, second)
	if !secondDay.Equal(firstDay.AddDate(0, 0, 1)) {
		t.Fatalf("expected second advance to add one more day: %s then %s", first, second)
	}
}

func TestAdvanceBusinessDayRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.AdvanceBusinessDay(cashierCtx("cashier1")); err == nil {
		t.Fatalf("expected non-admin advance to fail")
	}
}

func TestCurrentBusinessDayHealsInvalidSetting(t *testing.T) {
	svc, repo := newTestService()

	if err := repo.UpsertAppSetting(context.Background(), domain.SettingCurrentBusinessDay, "not-a-date"); err != nil {
		t.Fatalf("upsert setting failed: %v", err)
	}

	day, err := svc.CurrentBusinessDay(context.Background())
	if err != nil {
		t.Fatalf("current business day failed: %v", err)
	}
	if day != time.Now().Format(domain.BusinessDayLayout) {
		t.Fatalf("expected healed business day to be today, got %s", day)
	}
}

func TestReturnSaleRemovesFromTotals(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("cashier1")
	item := menuItemByCode(t, svc, "102")

	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	if _, err := svc.AddItemToBill(ctx, started.BillID, domain.BillAddItemRequest{MenuItemID: item.ID}); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	sale, err := svc.FinalizeBill(ctx, started.BillID, domain.FinalizeBillRequest{})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if err := svc.ReturnSale(adminCtx(), sale.ID, "order cancelled"); err != nil {
		t.Fatalf("return sale failed: %v", err)
	}

	sales, err := svc.ListSales(adminCtx(), store.SaleFilter{})
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected returned sale gone from history, got %d", len(sales))
	}

	summary, err := svc.SalesSummary(adminCtx(), store.SaleFilter{})
	if err != nil {
		t.Fatalf("sales summary failed: %v", err)
	}
	if summary.SaleCount != 0 || summary.TotalCents != 0 {
		t.Fatalf("expected empty totals after return, got %+v", summary)
	}
}

func TestReturnSaleRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()

	if err := svc.ReturnSale(cashierCtx("cashier1"), "sale-x", "nope"); err == nil {
		t.Fatalf("expected non-admin return to fail")
	}
}

func TestReconciliationReportBalances(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("cashier1")
	item := menuItemByCode(t, svc, "101")

	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	if _, err := svc.AddItemToBill(ctx, started.BillID, domain.BillAddItemRequest{MenuItemID: item.ID}); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	sale, err := svc.FinalizeBill(ctx, started.BillID, domain.FinalizeBillRequest{})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	report, err := svc.ReconciliationReport(adminCtx(), domain.ReconciliationRequest{
		CashierID:       "cashier1",
		BusinessDayFrom: sale.BusinessDay,
		BusinessDayTo:   sale.BusinessDay,
		PhysicalCash:    "350.00",
		OnlineBills:     "",
		Others:          "garbage",
	})
	if err != nil {
		t.Fatalf("reconciliation failed: %v", err)
	}
	if report.SystemSalesCents != sale.TotalCents {
		t.Fatalf("expected system sales %d, got %d", sale.TotalCents, report.SystemSalesCents)
	}
	if report.DifferenceCents != 0 || !report.Balanced {
		t.Fatalf("expected balanced report, got %+v", report)
	}
}

func TestImportMenuItemsCSVCountsPerRow(t *testing.T) {
	svc, _ := newTestService()

	body := strings.Join([]string{
		"code,name,price,category",
		"901,Hummus Plate,180.50,Sides",
		"101,Chicken Shawarma,360.00,Shawarma",
		",Missing Code,10.00,Sides",
	}, "\n")

	result, err := svc.ImportMenuItemsCSV(adminCtx(), strings.NewReader(body))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Added != 1 || result.Updated != 1 || result.Failed != 1 {
		t.Fatalf("unexpected import counts: %+v", result)
	}

	updated := menuItemByCode(t, svc, "101")
	if updated.PriceCents != 36000 {
		t.Fatalf("expected updated price 36000, got %d", updated.PriceCents)
	}
	added := menuItemByCode(t, svc, "901")
	if added.PriceCents != 18050 {
		t.Fatalf("expected added price 18050, got %d", added.PriceCents)
	}
}

func TestImportMenuItemsCSVRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ImportMenuItemsCSV(cashierCtx("cashier1"), strings.NewReader("code,name,price\n1,X,1.00"))
	if err == nil {
		t.Fatalf("expected non-admin import to fail")
	}
}

func TestCreateDealRecomputesTotal(t *testing.T) {
	svc, _ := newTestService()
	item := menuItemByCode(t, svc, "501")

	deal, err := svc.CreateDeal(adminCtx(), domain.DealCreateRequest{
		DealNumber: "D-77",
		Name:       "Drinks Deal",
		Items: []domain.DealItem{
			{MenuItemID: item.ID, Name: item.Name, Quantity: 3, DealPriceCents: 10000, OriginalPriceCents: item.PriceCents},
		},
	})
	if err != nil {
		t.Fatalf("create deal failed: %v", err)
	}
	if deal.CalculatedTotalCents != 30000 {
		t.Fatalf("expected calculated total 30000, got %d", deal.CalculatedTotalCents)
	}
}

func TestCreateDealRejectsEmptyItems(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateDeal(adminCtx(), domain.DealCreateRequest{
		DealNumber: "D-88",
		Name:       "Empty Deal",
		Items:      []domain.DealItem{},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for deal without items, got %v", err)
	}

	deals, listErr := svc.ListDeals(context.Background())
	if listErr != nil {
		t.Fatalf("list deals failed: %v", listErr)
	}
	for _, d := range deals {
		if d.DealNumber == "D-88" {
			t.Fatalf("expected rejected deal not to be stored")
		}
	}
}

func TestImportDealsCSVRecomputesStoredTotal(t *testing.T) {
	svc, _ := newTestService()
	item := menuItemByCode(t, svc, "201")
	seeded := seededDeal(t, svc)

	payload, err := json.Marshal([]domain.DealItem{
		{MenuItemID: item.ID, Name: item.Name, Quantity: 2, DealPriceCents: 40000, OriginalPriceCents: item.PriceCents},
	})
	if err != nil {
		t.Fatalf("marshal deal items failed: %v", err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	rows := [][]string{
		{"deal_number", "name", "description", "items", "is_active"},
		{seeded.DealNumber, "Combo Reworked", "", string(payload), "true"},
		{"D-90", "Burger Night", "Two zingers", string(payload), "true"},
		{"D-91", "Broken Deal", "", "[]", "true"},
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			t.Fatalf("write csv row failed: %v", err)
		}
	}
	writer.Flush()

	result, err := svc.ImportDealsCSV(adminCtx(), &buf)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Added != 1 || result.Updated != 1 || result.Failed != 1 {
		t.Fatalf("unexpected import counts: %+v", result)
	}

	deals, err := svc.ListDeals(context.Background())
	if err != nil {
		t.Fatalf("list deals failed: %v", err)
	}
	byNumber := make(map[string]domain.Deal, len(deals))
	for _, d := range deals {
		byNumber[d.DealNumber] = d
	}

	updated, ok := byNumber[seeded.DealNumber]
	if !ok {
		t.Fatalf("seeded deal %s missing after import", seeded.DealNumber)
	}
	if updated.Name != "Combo Reworked" || updated.CalculatedTotalCents != 80000 {
		t.Fatalf("expected updated deal total 80000, got name=%s total=%d", updated.Name, updated.CalculatedTotalCents)
	}
	added, ok := byNumber["D-90"]
	if !ok {
		t.Fatalf("expected deal D-90 to be added")
	}
	if added.CalculatedTotalCents != 80000 {
		t.Fatalf("expected added deal total 80000, got %d", added.CalculatedTotalCents)
	}
	if _, ok := byNumber["D-91"]; ok {
		t.Fatalf("expected deal with empty items to be rejected")
	}
}

func TestImportDealsCSVRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ImportDealsCSV(cashierCtx("cashier1"), strings.NewReader("deal_number,name,description,items,is_active"))
	if err == nil {
		t.Fatalf("expected non-admin import to fail")
	}
}

func TestAddInactiveDealRejected(t *testing.T) {
	svc, _ := newTestService()
	deal := seededDeal(t, svc)

	inactive := false
	if _, err := svc.UpdateDeal(adminCtx(), deal.ID, domain.DealUpdateRequest{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate deal failed: %v", err)
	}

	ctx := cashierCtx("cashier1")
	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	_, err = svc.AddDealToBill(ctx, started.BillID, domain.BillAddDealRequest{DealID: deal.ID})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for inactive deal, got %v", err)
	}
}

func TestResetAllDataClearsEverything(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx("cashier1")
	item := menuItemByCode(t, svc, "101")

	started, err := svc.StartBill(ctx, domain.BillStartRequest{})
	if err != nil {
		t.Fatalf("start bill failed: %v", err)
	}
	if _, err := svc.AddItemToBill(ctx, started.BillID, domain.BillAddItemRequest{MenuItemID: item.ID}); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.FinalizeBill(ctx, started.BillID, domain.FinalizeBillRequest{}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if err := svc.ResetAllData(adminCtx()); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	items, err := repo.ListMenuItems(context.Background())
	if err != nil {
		t.Fatalf("list menu items failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected menu cleared, got %d items", len(items))
	}
	sales, err := repo.ListSales(context.Background(), store.SaleFilter{})
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected sales cleared, got %d", len(sales))
	}
}
