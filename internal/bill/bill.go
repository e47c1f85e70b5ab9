package bill

import (
	"errors"
	"fmt"
	"time"

	"alshawaya/backend/internal/domain"
	"alshawaya/backend/internal/xid"
)

var (
	ErrEmptyBill        = errors.New("bill has no items")
	ErrDealQuantityLock = errors.New("deal item quantity is fixed by the bundle")
)

// Composer accumulates the lines of one in-progress bill. It is not
// safe for concurrent use; the service guards each session with its
// own lock. Nothing here touches storage: removal operations hand back
// a deletion-log draft and the caller decides whether to persist it.
type Composer struct {
	items []domain.BillItem
}

func NewComposer() *Composer {
	return &Composer{}
}

// AddMenuItem merges into an existing non-deal line with the same menu
// item and unit price, otherwise appends a fresh line with quantity 1.
// Deal lines never merge, even for the same menu item.
func (c *Composer) AddMenuItem(item domain.MenuItem) domain.BillItem {
	for i := range c.items {
		line := &c.items[i]
		if line.DealContext != nil {
			continue
		}
		if line.MenuItemID == item.ID && line.PriceCents == item.PriceCents {
			line.Quantity++
			line.TotalCents = line.PriceCents * int64(line.Quantity)
			return *line
		}
	}
	line := domain.BillItem{
		BillItemID: xid.New("line"),
		MenuItemID: item.ID,
		Code:       item.Code,
		Name:       item.Name,
		PriceCents: item.PriceCents,
		Quantity:   1,
		TotalCents: item.PriceCents,
		Category:   item.Category,
	}
	c.items = append(c.items, line)
	return line
}

// AddDeal expands every bundle line whose menu item still exists into
// a price-frozen snapshot line. Lines are appended, never merged, so a
// deal added twice yields two full sets. The names of bundle lines
// whose menu item has been deleted are returned for the caller to
// surface; the rest of the deal is still added.
func (c *Composer) AddDeal(deal domain.Deal, lookup func(menuItemID string) (*domain.MenuItem, bool)) (added []domain.BillItem, skipped []string) {
	for _, di := range deal.Items {
		item, ok := lookup(di.MenuItemID)
		if !ok || item == nil {
			skipped = append(skipped, di.Name)
			continue
		}
		line := domain.BillItem{
			BillItemID: xid.New("line"),
			MenuItemID: item.ID,
			Code:       item.Code,
			Name:       item.Name,
			PriceCents: di.DealPriceCents,
			Quantity:   di.Quantity,
			TotalCents: di.DealPriceCents * int64(di.Quantity),
			Category:   item.Category,
			DealContext: &domain.DealContext{
				DealID:             deal.ID,
				DealName:           deal.Name,
				OriginalPriceCents: di.OriginalPriceCents,
			},
		}
		c.items = append(c.items, line)
		added = append(added, line)
	}
	return added, skipped
}

// UpdateQuantity sets the quantity of a line. A quantity below one
// removes the line and reports it the same way an explicit removal
// does, except with the reduced-to-zero reason. Deal lines only accept
// their original bundle quantity. An unknown id is a no-op.
func (c *Composer) UpdateQuantity(billItemID string, quantity int, cashierID string) (*domain.DeletedItemLog, error) {
	idx := c.indexOf(billItemID)
	if idx < 0 {
		return nil, nil
	}
	line := &c.items[idx]
	if quantity < 1 {
		removed := *line
		c.items = append(c.items[:idx], c.items[idx+1:]...)
		entry := newRemovalLog(removed, removed.Quantity, cashierID, domain.RemovalReasonQuantityZero)
		return &entry, nil
	}
	if line.DealContext != nil {
		if quantity != line.Quantity {
			return nil, fmt.Errorf("%w: %s", ErrDealQuantityLock, line.Name)
		}
		return nil, nil
	}
	line.Quantity = quantity
	line.TotalCents = line.PriceCents * int64(quantity)
	return nil, nil
}

// RemoveItem removes a line unconditionally, deal-sourced or not.
// An unknown id is a no-op.
func (c *Composer) RemoveItem(billItemID string, cashierID string) *domain.DeletedItemLog {
	idx := c.indexOf(billItemID)
	if idx < 0 {
		return nil
	}
	removed := c.items[idx]
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	entry := newRemovalLog(removed, removed.Quantity, cashierID, domain.RemovalReasonRemoved)
	return &entry
}

// Subtotal is the sum of line totals. It never consults menu data, so
// price-frozen deal lines keep their captured prices.
func (c *Composer) Subtotal() int64 {
	var total int64
	for _, line := range c.items {
		total += line.TotalCents
	}
	return total
}

// Items returns a copy of the current lines in insertion order.
func (c *Composer) Items() []domain.BillItem {
	out := make([]domain.BillItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Composer) Empty() bool {
	return len(c.items) == 0
}

func (c *Composer) Clear() {
	c.items = nil
}

func (c *Composer) indexOf(billItemID string) int {
	for i := range c.items {
		if c.items[i].BillItemID == billItemID {
			return i
		}
	}
	return -1
}

func newRemovalLog(line domain.BillItem, qty int, cashierID string, reason string) domain.DeletedItemLog {
	entry := domain.DeletedItemLog{
		ID:                 xid.New("del"),
		MenuItemID:         line.MenuItemID,
		ItemName:           line.Name,
		ItemCode:           line.Code,
		QuantityRemoved:    qty,
		PricePerItemCents:  line.PriceCents,
		RemovedByCashierID: cashierID,
		Timestamp:          time.Now().UTC(),
		Reason:             reason,
	}
	if line.DealContext != nil {
		entry.IsDealItem = true
		entry.DealName = line.DealContext.DealName
	}
	return entry
}
