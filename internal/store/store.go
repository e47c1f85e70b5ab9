package store

import (
	"context"
	"errors"
	"time"

	"alshawaya/backend/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// SaleFilter scopes sale queries. Business day bounds are inclusive
// YYYY-MM-DD strings; empty fields match everything.
type SaleFilter struct {
	BusinessDayFrom string
	BusinessDayTo   string
	CashierID       string
}

type Repository interface {
	ListMenuItems(ctx context.Context) ([]domain.MenuItem, error)
	GetMenuItemByID(ctx context.Context, id string) (*domain.MenuItem, error)
	GetMenuItemByCode(ctx context.Context, code string) (*domain.MenuItem, error)
	CreateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error)
	UpdateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id string) error
	DeleteAllMenuItems(ctx context.Context) (int64, error)

	ListDeals(ctx context.Context) ([]domain.Deal, error)
	GetDealByID(ctx context.Context, id string) (*domain.Deal, error)
	GetDealByNumber(ctx context.Context, dealNumber string) (*domain.Deal, error)
	CreateDeal(ctx context.Context, deal domain.Deal) (*domain.Deal, error)
	UpdateDeal(ctx context.Context, deal domain.Deal) (*domain.Deal, error)
	DeleteDeal(ctx context.Context, id string) error
	DeleteAllDeals(ctx context.Context) (int64, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)
	SumSales(ctx context.Context, filter SaleFilter) (count int64, totalCents int64, err error)
	DeleteSale(ctx context.Context, id string) error
	DeleteSalesBefore(ctx context.Context, businessDay string) (int64, error)
	DeleteAllSales(ctx context.Context) (int64, error)

	CreateDeletedItemLog(ctx context.Context, entry domain.DeletedItemLog) error
	ListDeletedItemLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.DeletedItemLog, error)
	PurgeDeletedItemLogs(ctx context.Context) (int64, error)

	GetAppSetting(ctx context.Context, key string) (*domain.AppSetting, error)
	UpsertAppSetting(ctx context.Context, key string, value string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
