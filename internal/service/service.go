package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"alshawaya/backend/internal/bill"
	"alshawaya/backend/internal/cache"
	"alshawaya/backend/internal/domain"
	"alshawaya/backend/internal/store"
	"alshawaya/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

var (
	ErrEmptyBill          = bill.ErrEmptyBill
	ErrInvalidBusinessDay = errors.New("invalid business day")
	ErrBillNotFound       = errors.New("bill not found")
	ErrNotBillOwner       = errors.New("bill belongs to another cashier")
)

const catalogCacheKey = "catalog:v1"
const defaultCatalogTTL = 2 * time.Minute

type billSession struct {
	mu           sync.Mutex
	composer     *bill.Composer
	cashierID    string
	tableNumber  string
	customerName string
	waiterName   string
	startedAt    time.Time
}

type Service struct {
	repo       store.Repository
	catalog    cache.CatalogCache
	catalogTTL time.Duration

	sessionMu sync.RWMutex
	sessions  map[string]*billSession
}

func New(repo store.Repository, catalog cache.CatalogCache, catalogTTL time.Duration) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	if catalogTTL <= 0 {
		catalogTTL = defaultCatalogTTL
	}
	return &Service{
		repo:       repo,
		catalog:    catalog,
		catalogTTL: catalogTTL,
		sessions:   make(map[string]*billSession),
	}
}

// Catalog returns menu items and active deals in one fetch, serving
// from the cache when a fresh snapshot exists.
func (s *Service) Catalog(ctx context.Context) (domain.CatalogResponse, error) {
	if cached, ok, err := s.catalog.Get(ctx, catalogCacheKey); err == nil && ok && cached != nil {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: catalog cache read failed: %v", err)
	}

	items, err := s.repo.ListMenuItems(ctx)
	if err != nil {
		return domain.CatalogResponse{}, err
	}
	allDeals, err := s.repo.ListDeals(ctx)
	if err != nil {
		return domain.CatalogResponse{}, err
	}
	deals := make([]domain.Deal, 0, len(allDeals))
	for _, d := range allDeals {
		if d.IsActive {
			deals = append(deals, d)
		}
	}

	resp := domain.CatalogResponse{MenuItems: items, Deals: deals}
	if err := s.catalog.Set(ctx, catalogCacheKey, &resp, s.catalogTTL); err != nil {
		log.Printf("[service] WARN: catalog cache write failed: %v", err)
	}
	return resp, nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx, catalogCacheKey); err != nil {
		log.Printf("[service] WARN: catalog cache invalidate failed: %v", err)
	}
}

func (s *Service) ListMenuItems(ctx context.Context) ([]domain.MenuItem, error) {
	return s.repo.ListMenuItems(ctx)
}

func (s *Service) CreateMenuItem(ctx context.Context, req domain.MenuItemCreateRequest) (domain.MenuItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.MenuItem{}, fmt.Errorf("admin role required")
	}

	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.Code == "" || req.Name == "" {
		return domain.MenuItem{}, store.ErrValidation
	}
	if req.PriceCents < 0 {
		return domain.MenuItem{}, store.ErrValidation
	}

	item := domain.MenuItem{
		ID:         xid.New("item"),
		Code:       req.Code,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Category:   req.Category,
	}

	created, err := s.repo.CreateMenuItem(ctx, item)
	if err != nil {
		return domain.MenuItem{}, err
	}

	s.logAudit(ctx, "menu_item_create", "menu_item", created.ID, fmt.Sprintf("code=%s,name=%s,price=%d", created.Code, created.Name, created.PriceCents))
	s.invalidateCatalog(ctx)
	return *created, nil
}

func (s *Service) UpdateMenuItem(ctx context.Context, id string, req domain.MenuItemUpdateRequest) (domain.MenuItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.MenuItem{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetMenuItemByID(ctx, id)
	if err != nil {
		return domain.MenuItem{}, err
	}

	updated := *existing
	if req.Code != nil {
		code := strings.TrimSpace(*req.Code)
		if code == "" {
			return domain.MenuItem{}, store.ErrValidation
		}
		updated.Code = code
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.MenuItem{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return domain.MenuItem{}, store.ErrValidation
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}

	saved, err := s.repo.UpdateMenuItem(ctx, updated)
	if err != nil {
		return domain.MenuItem{}, err
	}

	s.logAudit(ctx, "menu_item_update", "menu_item", saved.ID, fmt.Sprintf("code=%s,price=%d", saved.Code, saved.PriceCents))
	s.invalidateCatalog(ctx)
	return *saved, nil
}

// DeleteMenuItem removes the item from the menu. Existing deals keep
// their snapshot of the item; adding such a deal to a bill later skips
// the missing line.
func (s *Service) DeleteMenuItem(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteMenuItem(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "menu_item_delete", "menu_item", id, "")
	s.invalidateCatalog(ctx)
	return nil
}

func (s *Service) ListDeals(ctx context.Context) ([]domain.Deal, error) {
	return s.repo.ListDeals(ctx)
}

func (s *Service) CreateDeal(ctx context.Context, req domain.DealCreateRequest) (domain.Deal, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Deal{}, fmt.Errorf("admin role required")
	}

	req.DealNumber = strings.TrimSpace(req.DealNumber)
	req.Name = strings.TrimSpace(req.Name)
	if req.DealNumber == "" || req.Name == "" || len(req.Items) == 0 {
		return domain.Deal{}, store.ErrValidation
	}

	items, err := normalizeDealItems(req.Items)
	if err != nil {
		return domain.Deal{}, err
	}

	now := time.Now().UTC()
	deal := domain.Deal{
		ID:                   xid.New("deal"),
		DealNumber:           req.DealNumber,
		Name:                 req.Name,
		Description:          strings.TrimSpace(req.Description),
		Items:                items,
		CalculatedTotalCents: dealTotal(items),
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if req.IsActive != nil {
		deal.IsActive = *req.IsActive
	}

	created, err := s.repo.CreateDeal(ctx, deal)
	if err != nil {
		return domain.Deal{}, err
	}

	s.logAudit(ctx, "deal_create", "deal", created.ID, fmt.Sprintf("number=%s,name=%s,total=%d", created.DealNumber, created.Name, created.CalculatedTotalCents))
	s.invalidateCatalog(ctx)
	return *created, nil
}

func (s *Service) UpdateDeal(ctx context.Context, id string, req domain.DealUpdateRequest) (domain.Deal, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Deal{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetDealByID(ctx, id)
	if err != nil {
		return domain.Deal{}, err
	}

	updated := *existing
	if req.DealNumber != nil {
		number := strings.TrimSpace(*req.DealNumber)
		if number == "" {
			return domain.Deal{}, store.ErrValidation
		}
		updated.DealNumber = number
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Deal{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Items != nil {
		items, err := normalizeDealItems(*req.Items)
		if err != nil {
			return domain.Deal{}, err
		}
		updated.Items = items
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	// The stored total is always recomputed from the item lines, never
	// taken from the request.
	updated.CalculatedTotalCents = dealTotal(updated.Items)
	updated.UpdatedAt = time.Now().UTC()

	saved, err := s.repo.UpdateDeal(ctx, updated)
	if err != nil {
		return domain.Deal{}, err
	}

	s.logAudit(ctx, "deal_update", "deal", saved.ID, fmt.Sprintf("number=%s,total=%d", saved.DealNumber, saved.CalculatedTotalCents))
	s.invalidateCatalog(ctx)
	return *saved, nil
}

func (s *Service) DeleteDeal(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteDeal(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "deal_delete", "deal", id, "")
	s.invalidateCatalog(ctx)
	return nil
}

// CurrentBusinessDay returns the open business day. A missing or
// unparseable stored value self-heals to today's calendar date.
func (s *Service) CurrentBusinessDay(ctx context.Context) (string, error) {
	setting, err := s.repo.GetAppSetting(ctx, domain.SettingCurrentBusinessDay)
	if err == nil && setting != nil {
		if _, parseErr := time.Parse(domain.BusinessDayLayout, setting.Value); parseErr == nil {
			return setting.Value, nil
		}
		log.Printf("[service] WARN: stored business day %q is invalid, resetting to today", setting.Value)
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	today := time.Now().Format(domain.BusinessDayLayout)
	if err := s.repo.UpsertAppSetting(ctx, domain.SettingCurrentBusinessDay, today); err != nil {
		return "", err
	}
	return today, nil
}

// AdvanceBusinessDay moves the open business day forward by one
// calendar day. There is no idempotency guard: calling twice advances
// two days.
func (s *Service) AdvanceBusinessDay(ctx context.Context) (string, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return "", fmt.Errorf("admin role required")
	}

	current, err := s.CurrentBusinessDay(ctx)
	if err != nil {
		return "", err
	}
	day, err := time.Parse(domain.BusinessDayLayout, current)
	if err != nil {
		return "", ErrInvalidBusinessDay
	}

	next := day.AddDate(0, 0, 1).Format(domain.BusinessDayLayout)
	if err := s.repo.UpsertAppSetting(ctx, domain.SettingCurrentBusinessDay, next); err != nil {
		return "", err
	}

	s.logAudit(ctx, "business_day_advance", "setting", domain.SettingCurrentBusinessDay, fmt.Sprintf("from=%s,to=%s", current, next))
	return next, nil
}

func (s *Service) CreateCashier(ctx context.Context, req domain.CashierCreateRequest, hashPassword func(string) (string, error)) (domain.CashierUser, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.CashierUser{}, fmt.Errorf("admin role required")
	}

	username := strings.TrimSpace(strings.ToLower(req.Username))
	if len(username) < 3 || len(req.Password) < 8 {
		return domain.CashierUser{}, store.ErrValidation
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.CashierUser{}, err
	}

	now := time.Now().UTC()
	user := domain.UserAccount{
		Username:  username,
		Password:  hash,
		Role:      domain.RoleCashier,
		Active:    true,
		CreatedAt: now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.CashierUser{}, err
	}

	s.logAudit(ctx, "cashier_create", "user", username, "")
	return domain.CashierUser{Username: username, Role: user.Role, Active: true, CreatedAt: now}, nil
}

func (s *Service) ListCashiers(ctx context.Context) ([]domain.CashierUser, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CashierUser, 0, len(users))
	for _, u := range users {
		out = append(out, domain.CashierUser{
			Username:  u.Username,
			Role:      u.Role,
			Active:    u.Active,
			CreatedAt: u.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func normalizeDealItems(items []domain.DealItem) ([]domain.DealItem, error) {
	normalized := make([]domain.DealItem, 0, len(items))
	for _, di := range items {
		di.MenuItemID = strings.TrimSpace(di.MenuItemID)
		di.Name = strings.TrimSpace(di.Name)
		if di.MenuItemID == "" || di.Name == "" || di.Quantity < 1 || di.DealPriceCents < 0 {
			return nil, store.ErrValidation
		}
		normalized = append(normalized, di)
	}
	return normalized, nil
}

func dealTotal(items []domain.DealItem) int64 {
	var total int64
	for _, di := range items {
		total += di.DealPriceCents * int64(di.Quantity)
	}
	return total
}
