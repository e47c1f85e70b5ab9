package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"alshawaya/backend/internal/domain"
	"alshawaya/backend/internal/store"
)

func TestSaleLifecycle(t *testing.T) {
	databaseURL := os.Getenv("ALSHAWAYA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set ALSHAWAYA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	businessDay := "1999-01-01"

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
	})

	sale := domain.Sale{
		ID:          saleID,
		TableNumber: "T9",
		Items: []domain.BillItem{
			{
				BillItemID: "line-it-1",
				MenuItemID: "item-it-1",
				Code:       "101",
				Name:       "Chicken Shawarma",
				PriceCents: 35000,
				Quantity:   2,
				TotalCents: 70000,
				Category:   "Shawarma",
			},
		},
		SubtotalCents: 70000,
		TotalCents:    70000,
		CreatedAt:     time.Now().UTC(),
		BusinessDay:   businessDay,
		CashierID:     "cashier-it",
	}

	created, err := s.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.ID != saleID {
		t.Fatalf("unexpected sale id %s", created.ID)
	}

	fetched, err := s.GetSaleByID(ctx, saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(fetched.Items) != 1 || fetched.Items[0].TotalCents != 70000 {
		t.Fatalf("expected items to round-trip through jsonb, got %+v", fetched.Items)
	}
	if fetched.TableNumber != "T9" {
		t.Fatalf("expected table number T9, got %q", fetched.TableNumber)
	}
	if fetched.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected created_at in UTC, got %v", fetched.CreatedAt.Location())
	}

	count, total, err := s.SumSales(ctx, store.SaleFilter{
		BusinessDayFrom: businessDay,
		BusinessDayTo:   businessDay,
		CashierID:       "cashier-it",
	})
	if err != nil {
		t.Fatalf("sum sales: %v", err)
	}
	if count != 1 || total != 70000 {
		t.Fatalf("expected count 1 total 70000, got %d / %d", count, total)
	}

	if err := s.DeleteSale(ctx, saleID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	if _, err := s.GetSaleByID(ctx, saleID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteSale(ctx, saleID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
