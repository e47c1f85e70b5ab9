package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"alshawaya/backend/internal/domain"
	"alshawaya/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListMenuItems(ctx context.Context) ([]domain.MenuItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, price_cents, category
		FROM menu_items
		ORDER BY category, code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.MenuItem, 0, 128)
	for rows.Next() {
		var it domain.MenuItem
		if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.PriceCents, &it.Category); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (s *Store) GetMenuItemByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	return s.getMenuItem(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetMenuItemByCode(ctx context.Context, code string) (*domain.MenuItem, error) {
	return s.getMenuItem(ctx, `WHERE code = $1`, code)
}

func (s *Store) getMenuItem(ctx context.Context, where string, arg any) (*domain.MenuItem, error) {
	var it domain.MenuItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, price_cents, category
		FROM menu_items
	`+where, arg).Scan(&it.ID, &it.Code, &it.Name, &it.PriceCents, &it.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

func (s *Store) CreateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	if item.ID == "" || item.Code == "" || item.Name == "" || item.PriceCents < 0 {
		return nil, store.ErrValidation
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO menu_items (id, code, name, price_cents, category, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
	`, item.ID, item.Code, item.Name, item.PriceCents, item.Category)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := item
	return &created, nil
}

func (s *Store) UpdateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	if item.Code == "" || item.Name == "" || item.PriceCents < 0 {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE menu_items
		SET code = $2, name = $3, price_cents = $4, category = $5, updated_at = now()
		WHERE id = $1
	`, item.ID, item.Code, item.Name, item.PriceCents, item.Category)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := item
	return &updated, nil
}

func (s *Store) DeleteMenuItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAllMenuItems(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM menu_items`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ListDeals(ctx context.Context) ([]domain.Deal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, deal_number, name, description, items, calculated_total_cents, is_active, created_at, updated_at
		FROM deals
		ORDER BY deal_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deals := make([]domain.Deal, 0, 32)
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return deals, nil
}

func (s *Store) GetDealByID(ctx context.Context, id string) (*domain.Deal, error) {
	return s.getDeal(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetDealByNumber(ctx context.Context, dealNumber string) (*domain.Deal, error) {
	return s.getDeal(ctx, `WHERE deal_number = $1`, dealNumber)
}

func (s *Store) getDeal(ctx context.Context, where string, arg any) (*domain.Deal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, deal_number, name, description, items, calculated_total_cents, is_active, created_at, updated_at
		FROM deals
	`+where, arg)
	deal, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &deal, nil
}

func (s *Store) CreateDeal(ctx context.Context, deal domain.Deal) (*domain.Deal, error) {
	if deal.ID == "" || deal.DealNumber == "" || deal.Name == "" || len(deal.Items) == 0 {
		return nil, store.ErrValidation
	}

	payload, err := json.Marshal(deal.Items)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deals (id, deal_number, name, description, items, calculated_total_cents, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, deal.ID, deal.DealNumber, deal.Name, deal.Description, payload, deal.CalculatedTotalCents, deal.IsActive, deal.CreatedAt, deal.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := deal
	return &created, nil
}

func (s *Store) UpdateDeal(ctx context.Context, deal domain.Deal) (*domain.Deal, error) {
	if deal.DealNumber == "" || deal.Name == "" || len(deal.Items) == 0 {
		return nil, store.ErrValidation
	}

	payload, err := json.Marshal(deal.Items)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE deals
		SET deal_number = $2, name = $3, description = $4, items = $5, calculated_total_cents = $6, is_active = $7, updated_at = $8
		WHERE id = $1
	`, deal.ID, deal.DealNumber, deal.Name, deal.Description, payload, deal.CalculatedTotalCents, deal.IsActive, deal.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := deal
	return &updated, nil
}

func (s *Store) DeleteDeal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAllDeals(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deals`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 || sale.BusinessDay == "" || sale.CashierID == "" {
		return nil, store.ErrValidation
	}

	payload, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (id, table_number, customer_name, waiter_name, items, subtotal_cents, tax_cents, discount_cents, total_cents, created_at, business_day, cashier_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, sale.ID, nullIfEmpty(sale.TableNumber), nullIfEmpty(sale.CustomerName), nullIfEmpty(sale.WaiterName),
		payload, sale.SubtotalCents, sale.TaxCents, sale.DiscountCents, sale.TotalCents, sale.CreatedAt, sale.BusinessDay, sale.CashierID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, table_number, customer_name, waiter_name, items, subtotal_cents, tax_cents, discount_cents, total_cents, created_at, business_day, cashier_id
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	query := `
		SELECT id, table_number, customer_name, waiter_name, items, subtotal_cents, tax_cents, discount_cents, total_cents, created_at, business_day, cashier_id
		FROM sales
		WHERE ($1 = '' OR business_day >= $1)
		  AND ($2 = '' OR business_day <= $2)
		  AND ($3 = '' OR cashier_id = $3)
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, filter.BusinessDayFrom, filter.BusinessDayTo, filter.CashierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sales, nil
}

func (s *Store) SumSales(ctx context.Context, filter store.SaleFilter) (int64, int64, error) {
	var count, total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_cents), 0)
		FROM sales
		WHERE ($1 = '' OR business_day >= $1)
		  AND ($2 = '' OR business_day <= $2)
		  AND ($3 = '' OR cashier_id = $3)
	`, filter.BusinessDayFrom, filter.BusinessDayTo, filter.CashierID).Scan(&count, &total)
	if err != nil {
		return 0, 0, err
	}
	return count, total, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSalesBefore(ctx context.Context, businessDay string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE business_day < $1`, businessDay)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteAllSales(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CreateDeletedItemLog(ctx context.Context, entry domain.DeletedItemLog) error {
	if entry.ID == "" || entry.ItemName == "" || entry.Reason == "" {
		return store.ErrValidation
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deleted_item_logs (id, menu_item_id, item_name, item_code, quantity_removed, price_per_item_cents, removed_by_cashier_id, bill_id, ts, reason, is_deal_item, deal_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, entry.ID, entry.MenuItemID, entry.ItemName, entry.ItemCode, entry.QuantityRemoved, entry.PricePerItemCents,
		entry.RemovedByCashierID, nullIfEmpty(entry.BillID), entry.Timestamp, entry.Reason, entry.IsDealItem, nullIfEmpty(entry.DealName))
	return err
}

func (s *Store) ListDeletedItemLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.DeletedItemLog, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, menu_item_id, item_name, item_code, quantity_removed, price_per_item_cents, removed_by_cashier_id, COALESCE(bill_id, ''), ts, reason, is_deal_item, COALESCE(deal_name, '')
		FROM deleted_item_logs
		WHERE ($1::timestamptz IS NULL OR ts >= $1)
		  AND ($2::timestamptz IS NULL OR ts <= $2)
		ORDER BY ts DESC
		LIMIT $3
	`, nullTimeValue(from), nullTimeValue(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.DeletedItemLog, 0, limit)
	for rows.Next() {
		var entry domain.DeletedItemLog
		if err := rows.Scan(&entry.ID, &entry.MenuItemID, &entry.ItemName, &entry.ItemCode, &entry.QuantityRemoved,
			&entry.PricePerItemCents, &entry.RemovedByCashierID, &entry.BillID, &entry.Timestamp, &entry.Reason,
			&entry.IsDealItem, &entry.DealName); err != nil {
			return nil, err
		}
		entry.Timestamp = entry.Timestamp.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) PurgeDeletedItemLogs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deleted_item_logs`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) GetAppSetting(ctx context.Context, key string) (*domain.AppSetting, error) {
	var setting domain.AppSetting
	err := s.db.QueryRowContext(ctx, `
		SELECT key, value, updated_at
		FROM app_settings
		WHERE key = $1
	`, key).Scan(&setting.Key, &setting.Value, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &setting, nil
}

func (s *Store) UpsertAppSetting(ctx context.Context, key string, value string) error {
	if key == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_settings (key, value, updated_at)
		VALUES ($1,$2,now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, nullTimeValue(from), nullTimeValue(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType,
			&entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(row rowScanner) (domain.Deal, error) {
	var deal domain.Deal
	var payload []byte
	if err := row.Scan(&deal.ID, &deal.DealNumber, &deal.Name, &deal.Description, &payload,
		&deal.CalculatedTotalCents, &deal.IsActive, &deal.CreatedAt, &deal.UpdatedAt); err != nil {
		return domain.Deal{}, err
	}
	if err := json.Unmarshal(payload, &deal.Items); err != nil {
		return domain.Deal{}, err
	}
	deal.CreatedAt = deal.CreatedAt.UTC()
	deal.UpdatedAt = deal.UpdatedAt.UTC()
	return deal, nil
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var payload []byte
	var tableNumber, customerName, waiterName sql.NullString
	if err := row.Scan(&sale.ID, &tableNumber, &customerName, &waiterName, &payload,
		&sale.SubtotalCents, &sale.TaxCents, &sale.DiscountCents, &sale.TotalCents,
		&sale.CreatedAt, &sale.BusinessDay, &sale.CashierID); err != nil {
		return domain.Sale{}, err
	}
	if err := json.Unmarshal(payload, &sale.Items); err != nil {
		return domain.Sale{}, err
	}
	sale.TableNumber = tableNumber.String
	sale.CustomerName = customerName.String
	sale.WaiterName = waiterName.String
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTimeValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
