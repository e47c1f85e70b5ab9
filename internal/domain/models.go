package domain

import "time"

type MenuItem struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Category   string `json:"category"`
}

type MenuItemCreateRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Category   string `json:"category"`
}

type MenuItemUpdateRequest struct {
	Code       *string `json:"code,omitempty"`
	Name       *string `json:"name,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Category   *string `json:"category,omitempty"`
}

type MenuItemListResponse struct {
	Items []MenuItem `json:"items"`
}

// DealItem is one bundle line inside a deal. OriginalPriceCents is the
// menu price captured when the deal was authored, kept for display and
// discount reporting even after the menu price changes.
type DealItem struct {
	MenuItemID         string `json:"menu_item_id"`
	Name               string `json:"name"`
	Quantity           int    `json:"quantity"`
	DealPriceCents     int64  `json:"deal_price_cents"`
	OriginalPriceCents int64  `json:"original_price_cents"`
}

type Deal struct {
	ID                   string     `json:"id"`
	DealNumber           string     `json:"deal_number"`
	Name                 string     `json:"name"`
	Description          string     `json:"description,omitempty"`
	Items                []DealItem `json:"items"`
	CalculatedTotalCents int64      `json:"calculated_total_cents"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type DealCreateRequest struct {
	DealNumber  string     `json:"deal_number"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Items       []DealItem `json:"items"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

type DealUpdateRequest struct {
	DealNumber  *string     `json:"deal_number,omitempty"`
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	Items       *[]DealItem `json:"items,omitempty"`
	IsActive    *bool       `json:"is_active,omitempty"`
}

type DealListResponse struct {
	Deals []Deal `json:"deals"`
}

// DealContext marks a bill line that came from deal expansion. Lines
// carrying it are price-frozen and quantity-locked to the bundle.
type DealContext struct {
	DealID             string `json:"deal_id"`
	DealName           string `json:"deal_name"`
	OriginalPriceCents int64  `json:"original_price_cents"`
}

type BillItem struct {
	BillItemID  string       `json:"bill_item_id"`
	MenuItemID  string       `json:"menu_item_id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	PriceCents  int64        `json:"price_cents"`
	Quantity    int          `json:"quantity"`
	TotalCents  int64        `json:"total_cents"`
	Category    string       `json:"category"`
	DealContext *DealContext `json:"deal_context,omitempty"`
}

type Sale struct {
	ID            string     `json:"id"`
	TableNumber   string     `json:"table_number,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	WaiterName    string     `json:"waiter_name,omitempty"`
	Items         []BillItem `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
	TaxCents      int64      `json:"tax_cents"`
	DiscountCents int64      `json:"discount_cents"`
	TotalCents    int64      `json:"total_cents"`
	CreatedAt     time.Time  `json:"created_at"`
	BusinessDay   string     `json:"business_day"`
	CashierID     string     `json:"cashier_id"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type DeletedItemLog struct {
	ID                 string    `json:"id"`
	MenuItemID         string    `json:"menu_item_id"`
	ItemName           string    `json:"item_name"`
	ItemCode           string    `json:"item_code"`
	QuantityRemoved    int       `json:"quantity_removed"`
	PricePerItemCents  int64     `json:"price_per_item_cents"`
	RemovedByCashierID string    `json:"removed_by_cashier_id"`
	BillID             string    `json:"bill_id,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	Reason             string    `json:"reason"`
	IsDealItem         bool      `json:"is_deal_item"`
	DealName           string    `json:"deal_name,omitempty"`
}

type DeletedItemLogListResponse struct {
	Logs []DeletedItemLog `json:"logs"`
}

type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BillStartRequest struct {
	TableNumber  string `json:"table_number"`
	CustomerName string `json:"customer_name"`
	WaiterName   string `json:"waiter_name"`
}

type BillAddItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
}

type BillAddDealRequest struct {
	DealID string `json:"deal_id"`
}

type BillUpdateQuantityRequest struct {
	BillItemID string `json:"bill_item_id"`
	Quantity   int    `json:"quantity"`
}

type BillRemoveItemRequest struct {
	BillItemID string `json:"bill_item_id"`
}

type BillResponse struct {
	BillID        string     `json:"bill_id"`
	TableNumber   string     `json:"table_number,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	WaiterName    string     `json:"waiter_name,omitempty"`
	Items         []BillItem `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
	StartedAt     time.Time  `json:"started_at"`
	SkippedItems  []string   `json:"skipped_items,omitempty"`
}

type FinalizeBillRequest struct {
	TaxCents      int64 `json:"tax_cents"`
	DiscountCents int64 `json:"discount_cents"`
}

type FinalizeBillResponse struct {
	Sale Sale `json:"sale"`
}

type CatalogResponse struct {
	MenuItems []MenuItem `json:"menu_items"`
	Deals     []Deal     `json:"deals"`
}

type SalesSummary struct {
	BusinessDayFrom string `json:"business_day_from"`
	BusinessDayTo   string `json:"business_day_to"`
	CashierID       string `json:"cashier_id,omitempty"`
	SaleCount       int64  `json:"sale_count"`
	TotalCents      int64  `json:"total_cents"`
}

type ReconciliationRequest struct {
	CashierID       string `json:"cashier_id"`
	BusinessDayFrom string `json:"business_day_from"`
	BusinessDayTo   string `json:"business_day_to"`
	PhysicalCash    string `json:"physical_cash"`
	OnlineBills     string `json:"online_bills"`
	Others          string `json:"others"`
	ReturnAmount    string `json:"return_amount"`
	Expenses        string `json:"expenses"`
}

type ReconciliationReport struct {
	CashierID               string `json:"cashier_id"`
	BusinessDayFrom         string `json:"business_day_from"`
	BusinessDayTo           string `json:"business_day_to"`
	SaleCount               int64  `json:"sale_count"`
	SystemSalesCents        int64  `json:"system_sales_cents"`
	PhysicalCashCents       int64  `json:"physical_cash_cents"`
	OnlineBillsCents        int64  `json:"online_bills_cents"`
	OthersCents             int64  `json:"others_cents"`
	ReturnAmountCents       int64  `json:"return_amount_cents"`
	ExpensesCents           int64  `json:"expenses_cents"`
	NetPhysicalBalanceCents int64  `json:"net_physical_balance_cents"`
	DifferenceCents         int64  `json:"difference_cents"`
	Balanced                bool   `json:"balanced"`
	GeneratedAt             string `json:"generated_at"`
}

type BusinessDayResponse struct {
	BusinessDay string `json:"business_day"`
}

type ImportResult struct {
	Added   int      `json:"added"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

type ReturnSaleRequest struct {
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type PurgeSalesRequest struct {
	Before     string `json:"before"`
	ManagerPIN string `json:"manager_pin"`
}

type PurgeDeletedItemLogsRequest struct {
	ManagerPIN string `json:"manager_pin"`
}

type ResetDataRequest struct {
	ManagerPIN string `json:"manager_pin"`
	Confirm    string `json:"confirm"`
}

type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	RemovalReasonQuantityZero = "quantity reduced to zero"
	RemovalReasonRemoved      = "removed by cashier"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const SettingCurrentBusinessDay = "current_business_day"

// BusinessDayLayout is the canonical YYYY-MM-DD form used for the
// business day setting and for Sale.BusinessDay.
const BusinessDayLayout = "2006-01-02"
