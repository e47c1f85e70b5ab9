package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"alshawaya/backend/internal/domain"
	"alshawaya/backend/internal/store"
	"alshawaya/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	menuItemsByID   map[string]domain.MenuItem
	dealsByID       map[string]domain.Deal
	salesByID       map[string]domain.Sale
	deletedItemLogs []domain.DeletedItemLog
	settings        map[string]domain.AppSetting
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier1", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	menuItems := []domain.MenuItem{
		{ID: xid.New("item"), Code: "101", Name: "Chicken Shawarma", PriceCents: 35000, Category: "Shawarma"},
		{ID: xid.New("item"), Code: "102", Name: "Beef Shawarma", PriceCents: 40000, Category: "Shawarma"},
		{ID: xid.New("item"), Code: "103", Name: "Shawarma Platter", PriceCents: 75000, Category: "Shawarma"},
		{ID: xid.New("item"), Code: "201", Name: "Zinger Burger", PriceCents: 45000, Category: "Burgers"},
		{ID: xid.New("item"), Code: "202", Name: "Grilled Chicken Burger", PriceCents: 50000, Category: "Burgers"},
		{ID: xid.New("item"), Code: "301", Name: "Chicken Broast Quarter", PriceCents: 55000, Category: "Broast"},
		{ID: xid.New("item"), Code: "302", Name: "Chicken Broast Full", PriceCents: 180000, Category: "Broast"},
		{ID: xid.New("item"), Code: "401", Name: "Fries Regular", PriceCents: 20000, Category: "Sides"},
		{ID: xid.New("item"), Code: "402", Name: "Garlic Mayo Dip", PriceCents: 5000, Category: "Sides"},
		{ID: xid.New("item"), Code: "501", Name: "Soft Drink 500ml", PriceCents: 12000, Category: "Beverages"},
		{ID: xid.New("item"), Code: "502", Name: "Mint Margarita", PriceCents: 25000, Category: "Beverages"},
	}

	itemsByID := make(map[string]domain.MenuItem, len(menuItems))
	byName := map[string]domain.MenuItem{}
	for _, it := range menuItems {
		itemsByID[it.ID] = it
		byName[it.Name] = it
	}

	now := time.Now().UTC()
	dealItems := []domain.DealItem{
		{MenuItemID: byName["Chicken Shawarma"].ID, Name: "Chicken Shawarma", Quantity: 2, DealPriceCents: 30000, OriginalPriceCents: 35000},
		{MenuItemID: byName["Fries Regular"].ID, Name: "Fries Regular", Quantity: 1, DealPriceCents: 15000, OriginalPriceCents: 20000},
		{MenuItemID: byName["Soft Drink 500ml"].ID, Name: "Soft Drink 500ml", Quantity: 2, DealPriceCents: 10000, OriginalPriceCents: 12000},
	}
	var dealTotal int64
	for _, di := range dealItems {
		dealTotal += di.DealPriceCents * int64(di.Quantity)
	}
	deal := domain.Deal{
		ID:                   xid.New("deal"),
		DealNumber:           "D-01",
		Name:                 "Shawarma Combo",
		Description:          "2 shawarmas, fries and two drinks",
		Items:                dealItems,
		CalculatedTotalCents: dealTotal,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	s := &Store{
		menuItemsByID:   itemsByID,
		dealsByID:       map[string]domain.Deal{deal.ID: deal},
		salesByID:       make(map[string]domain.Sale),
		deletedItemLogs: make([]domain.DeletedItemLog, 0, 64),
		settings:        make(map[string]domain.AppSetting),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
	return s
}

func New() *Store {
	return &Store{
		menuItemsByID:   make(map[string]domain.MenuItem),
		dealsByID:       make(map[string]domain.Deal),
		salesByID:       make(map[string]domain.Sale),
		deletedItemLogs: make([]domain.DeletedItemLog, 0, 64),
		settings:        make(map[string]domain.AppSetting),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func (s *Store) ListMenuItems(_ context.Context) ([]domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.MenuItem, 0, len(s.menuItemsByID))
	for _, it := range s.menuItemsByID {
		items = append(items, it)
	}

	slices.SortFunc(items, func(a, b domain.MenuItem) int {
		if a.Category == b.Category {
			return cmpString(a.Code, b.Code)
		}
		return cmpString(a.Category, b.Category)
	})

	return items, nil
}

func (s *Store) GetMenuItemByID(_ context.Context, id string) (*domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.menuItemsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) GetMenuItemByCode(_ context.Context, code string) (*domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, it := range s.menuItemsByID {
		if it.Code == code {
			copyItem := it
			return &copyItem, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateMenuItem(_ context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" || item.Code == "" || item.Name == "" || item.PriceCents < 0 {
		return nil, store.ErrValidation
	}
	for _, existing := range s.menuItemsByID {
		if existing.Code == item.Code {
			return nil, store.ErrConflict
		}
	}

	s.menuItemsByID[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) UpdateMenuItem(_ context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Code == "" || item.Name == "" || item.PriceCents < 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.menuItemsByID[item.ID]; !exists {
		return nil, store.ErrNotFound
	}
	for id, existing := range s.menuItemsByID {
		if id != item.ID && existing.Code == item.Code {
			return nil, store.ErrConflict
		}
	}

	s.menuItemsByID[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeleteMenuItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.menuItemsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.menuItemsByID, id)
	return nil
}

func (s *Store) DeleteAllMenuItems(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.menuItemsByID))
	s.menuItemsByID = make(map[string]domain.MenuItem)
	return n, nil
}

func (s *Store) ListDeals(_ context.Context) ([]domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deals := make([]domain.Deal, 0, len(s.dealsByID))
	for _, d := range s.dealsByID {
		deals = append(deals, cloneDeal(d))
	}

	slices.SortFunc(deals, func(a, b domain.Deal) int {
		return cmpString(a.DealNumber, b.DealNumber)
	})

	return deals, nil
}

func (s *Store) GetDealByID(_ context.Context, id string) (*domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deal, exists := s.dealsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyDeal := cloneDeal(deal)
	return &copyDeal, nil
}

func (s *Store) GetDealByNumber(_ context.Context, dealNumber string) (*domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.dealsByID {
		if d.DealNumber == dealNumber {
			copyDeal := cloneDeal(d)
			return &copyDeal, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateDeal(_ context.Context, deal domain.Deal) (*domain.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deal.ID == "" || deal.DealNumber == "" || deal.Name == "" || len(deal.Items) == 0 {
		return nil, store.ErrValidation
	}
	for _, existing := range s.dealsByID {
		if existing.DealNumber == deal.DealNumber {
			return nil, store.ErrConflict
		}
	}

	s.dealsByID[deal.ID] = cloneDeal(deal)
	created := cloneDeal(deal)
	return &created, nil
}

func (s *Store) UpdateDeal(_ context.Context, deal domain.Deal) (*domain.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deal.DealNumber == "" || deal.Name == "" || len(deal.Items) == 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.dealsByID[deal.ID]; !exists {
		return nil, store.ErrNotFound
	}
	for id, existing := range s.dealsByID {
		if id != deal.ID && existing.DealNumber == deal.DealNumber {
			return nil, store.ErrConflict
		}
	}

	s.dealsByID[deal.ID] = cloneDeal(deal)
	updated := cloneDeal(deal)
	return &updated, nil
}

func (s *Store) DeleteDeal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.dealsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.dealsByID, id)
	return nil
}

func (s *Store) DeleteAllDeals(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.dealsByID))
	s.dealsByID = make(map[string]domain.Deal)
	return n, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" || len(sale.Items) == 0 || sale.BusinessDay == "" || sale.CashierID == "" {
		return nil, store.ErrValidation
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrConflict
	}

	s.salesByID[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if !matchesFilter(sale, filter) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}

	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return sales, nil
}

func (s *Store) SumSales(_ context.Context, filter store.SaleFilter) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count, total int64
	for _, sale := range s.salesByID {
		if !matchesFilter(sale, filter) {
			continue
		}
		count++
		total += sale.TotalCents
	}
	return count, total, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.salesByID, id)
	return nil
}

func (s *Store) DeleteSalesBefore(_ context.Context, businessDay string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sale := range s.salesByID {
		if strings.Compare(sale.BusinessDay, businessDay) < 0 {
			delete(s.salesByID, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteAllSales(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.salesByID))
	s.salesByID = make(map[string]domain.Sale)
	return n, nil
}

func (s *Store) CreateDeletedItemLog(_ context.Context, entry domain.DeletedItemLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" || entry.ItemName == "" || entry.Reason == "" {
		return store.ErrValidation
	}
	s.deletedItemLogs = append(s.deletedItemLogs, entry)
	return nil
}

func (s *Store) ListDeletedItemLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.DeletedItemLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.DeletedItemLog, 0, len(s.deletedItemLogs))
	for _, entry := range s.deletedItemLogs {
		if !from.IsZero() && entry.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && entry.Timestamp.After(to) {
			continue
		}
		logs = append(logs, entry)
	}

	slices.SortFunc(logs, func(a, b domain.DeletedItemLog) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}

	return logs, nil
}

func (s *Store) PurgeDeletedItemLogs(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.deletedItemLogs))
	s.deletedItemLogs = s.deletedItemLogs[:0]
	return n, nil
}

func (s *Store) GetAppSetting(_ context.Context, key string) (*domain.AppSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, exists := s.settings[key]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySetting := setting
	return &copySetting, nil
}

func (s *Store) UpsertAppSetting(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" {
		return store.ErrValidation
	}
	s.settings[key] = domain.AppSetting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		logs = append(logs, entry)
	}

	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}

	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func matchesFilter(sale domain.Sale, filter store.SaleFilter) bool {
	if filter.CashierID != "" && sale.CashierID != filter.CashierID {
		return false
	}
	if filter.BusinessDayFrom != "" && strings.Compare(sale.BusinessDay, filter.BusinessDayFrom) < 0 {
		return false
	}
	if filter.BusinessDayTo != "" && strings.Compare(sale.BusinessDay, filter.BusinessDayTo) > 0 {
		return false
	}
	return true
}

func cloneSale(sale domain.Sale) domain.Sale {
	out := sale
	out.Items = make([]domain.BillItem, len(sale.Items))
	copy(out.Items, sale.Items)
	for i := range out.Items {
		if out.Items[i].DealContext != nil {
			dc := *out.Items[i].DealContext
			out.Items[i].DealContext = &dc
		}
	}
	return out
}

func cloneDeal(deal domain.Deal) domain.Deal {
	out := deal
	out.Items = make([]domain.DealItem, len(deal.Items))
	copy(out.Items, deal.Items)
	return out
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
