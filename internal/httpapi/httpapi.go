package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"alshawaya/backend/internal/bill"
	"alshawaya/backend/internal/domain"
	"alshawaya/backend/internal/reconcile"
	"alshawaya/backend/internal/service"
	"alshawaya/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// generateCSRFToken returns a token valid for the current hour bucket.
func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/catalog", a.requireAuth(a.handleCatalog, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/menu-items", a.requireAuth(a.handleMenuItems, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/menu-items/", a.requireAuth(a.handleMenuItemActions, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/deals", a.requireAuth(a.handleDeals, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/deals/", a.requireAuth(a.handleDealActions, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/bills", a.requireAuth(a.handleBills, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/bills/", a.requireAuth(a.handleBillActions, domain.RoleCashier, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sales/summary", a.requireAuth(a.handleSalesSummary, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sales/purge", a.requireAuth(a.handleSalesPurge, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/deleted-items", a.requireAuth(a.handleDeletedItems, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/deleted-items/purge", a.requireAuth(a.handleDeletedItemsPurge, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/settings/business-day", a.requireAuth(a.handleBusinessDay, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/settings/business-day/advance", a.requireAuth(a.handleBusinessDayAdvance, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/reset", a.requireAuth(a.handleDataReset, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/reports/reconciliation", a.requireAuth(a.handleReconciliation, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/users/cashiers", a.requireAuth(a.handleCashiers, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods (POST/PUT/PATCH/DELETE).
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	catalog, err := a.service.Catalog(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (a *API) handleMenuItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.service.ListMenuItems(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.MenuItemListResponse{Items: items})
	case http.MethodPost:
		var req domain.MenuItemCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		item, err := a.service.CreateMenuItem(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": item})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleMenuItemActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/menu-items/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("menu item id required"))
		return
	}

	switch tail {
	case "import":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		result, err := a.service.ImportMenuItemsCSV(r.Context(), r.Body)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	case "export":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		var buf bytes.Buffer
		if err := a.service.ExportMenuItemsCSV(r.Context(), &buf); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeCSV(w, "menu-items.csv", buf.Bytes())
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.MenuItemUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.UpdateMenuItem(r.Context(), tail, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	case http.MethodDelete:
		if err := a.service.DeleteMenuItem(r.Context(), tail); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": tail})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDeals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		deals, err := a.service.ListDeals(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.DealListResponse{Deals: deals})
	case http.MethodPost:
		var req domain.DealCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		deal, err := a.service.CreateDeal(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"deal": deal})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDealActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/deals/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("deal id required"))
		return
	}

	switch tail {
	case "import":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		result, err := a.service.ImportDealsCSV(r.Context(), r.Body)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	case "export":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		var buf bytes.Buffer
		if err := a.service.ExportDealsCSV(r.Context(), &buf); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeCSV(w, "deals.csv", buf.Bytes())
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.DealUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		deal, err := a.service.UpdateDeal(r.Context(), tail, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deal": deal})
	case http.MethodDelete:
		if err := a.service.DeleteDeal(r.Context(), tail); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": tail})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleBills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.BillStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.StartBill(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleBillActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/bills/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("bill id required"))
		return
	}

	billID := tail
	action := ""
	if idx := strings.LastIndex(tail, "/"); idx > 0 {
		billID = tail[:idx]
		action = tail[idx+1:]
	}

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			resp, err := a.service.GetBill(r.Context(), billID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodDelete:
			if err := a.service.AbandonBill(r.Context(), billID); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"abandoned": billID})
		default:
			writeMethodNotAllowed(w)
		}
		return
	}

	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	switch action {
	case "items":
		var req domain.BillAddItemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.AddItemToBill(r.Context(), billID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case "deals":
		var req domain.BillAddDealRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.AddDealToBill(r.Context(), billID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case "quantity":
		var req domain.BillUpdateQuantityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.UpdateBillItemQuantity(r.Context(), billID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case "remove-item":
		var req domain.BillRemoveItemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.RemoveBillItem(r.Context(), billID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case "finalize":
		var req domain.FinalizeBillRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.FinalizeBill(r.Context(), billID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, domain.FinalizeBillResponse{Sale: sale})
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown bill action"))
	}
}

func saleFilterFromQuery(r *http.Request) store.SaleFilter {
	return store.SaleFilter{
		BusinessDayFrom: strings.TrimSpace(r.URL.Query().Get("from")),
		BusinessDayTo:   strings.TrimSpace(r.URL.Query().Get("to")),
		CashierID:       strings.TrimSpace(r.URL.Query().Get("cashier_id")),
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	sales, err := a.service.ListSales(r.Context(), saleFilterFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		writeCSV(w, "sales.csv", []byte(salesToCSV(sales)))
		return
	}
	writeJSON(w, http.StatusOK, domain.SaleListResponse{Sales: sales})
}

func (a *API) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	summary, err := a.service.SalesSummary(r.Context(), saleFilterFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleSalesPurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PurgeSalesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.verifyManagerPIN(w, r, req.ManagerPIN) {
		return
	}

	deleted, err := a.service.PurgeSalesBefore(r.Context(), req.Before)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.PurgeResponse{Deleted: deleted})
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/sales/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("sale id required"))
		return
	}

	saleID := tail
	action := ""
	if idx := strings.LastIndex(tail, "/"); idx > 0 {
		saleID = tail[:idx]
		action = tail[idx+1:]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		sale, err := a.service.GetSale(r.Context(), saleID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case action == "return" && r.Method == http.MethodPost:
		var req domain.ReturnSaleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !a.verifyManagerPIN(w, r, req.ManagerPIN) {
			return
		}
		if err := a.service.ReturnSale(r.Context(), saleID, req.Reason); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"returned": saleID})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDeletedItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, to := parseTimeRange(r)
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 200, 1000)
	logs, err := a.service.ListDeletedItemLogs(r.Context(), from, to, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.DeletedItemLogListResponse{Logs: logs})
}

func (a *API) handleDeletedItemsPurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PurgeDeletedItemLogsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.verifyManagerPIN(w, r, req.ManagerPIN) {
		return
	}

	deleted, err := a.service.PurgeDeletedItemLogs(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.PurgeResponse{Deleted: deleted})
}

func (a *API) handleBusinessDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	day, err := a.service.CurrentBusinessDay(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.BusinessDayResponse{BusinessDay: day})
}

func (a *API) handleBusinessDayAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	day, err := a.service.AdvanceBusinessDay(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.BusinessDayResponse{BusinessDay: day})
}

func (a *API) handleDataReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ResetDataRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Confirm != "RESET" {
		writeError(w, http.StatusBadRequest, errors.New(`confirm must be "RESET"`))
		return
	}
	if !a.verifyManagerPIN(w, r, req.ManagerPIN) {
		return
	}

	if err := a.service.ResetAllData(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reset": true})
}

func (a *API) handleReconciliation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ReconciliationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := a.service.ReconciliationReport(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(reconciliationToPrintableHTML(report)))
	case "csv":
		writeCSV(w, "reconciliation.csv", []byte(reconciliationToCSV(report)))
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, to := parseTimeRange(r)
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 200, 1000)
	logs, err := a.service.ListAuditLogs(r.Context(), from, to, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) handleCashiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cashiers, err := a.service.ListCashiers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cashiers": cashiers})
	case http.MethodPost:
		var req domain.CashierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		cashier, err := a.service.CreateCashier(r.Context(), req, a.auth.HashPassword)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
	default:
		writeMethodNotAllowed(w)
	}
}

// verifyManagerPIN rate-limits and validates the manager PIN, writing
// the error response itself when validation fails.
func (a *API) verifyManagerPIN(w http.ResponseWriter, r *http.Request, pin string) bool {
	if !a.pinLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return false
	}
	if !a.auth.ValidateManagerPIN(pin) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return false
	}
	return true
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Enforce CSRF protection for all state-changing requests.
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func salesToCSV(sales []domain.Sale) string {
	lines := []string{
		"id,business_day,created_at,cashier_id,table_number,customer_name,subtotal,tax,discount,total,item_count",
	}
	for _, sale := range sales {
		lines = append(lines, fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%d",
			sale.ID, sale.BusinessDay, sale.CreatedAt.Format(time.RFC3339), sale.CashierID,
			csvField(sale.TableNumber), csvField(sale.CustomerName),
			reconcile.FormatCents(sale.SubtotalCents), reconcile.FormatCents(sale.TaxCents),
			reconcile.FormatCents(sale.DiscountCents), reconcile.FormatCents(sale.TotalCents),
			len(sale.Items)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func reconciliationToCSV(report domain.ReconciliationReport) string {
	lines := []string{
		"key,value",
		fmt.Sprintf("cashier_id,%s", report.CashierID),
		fmt.Sprintf("business_day_from,%s", report.BusinessDayFrom),
		fmt.Sprintf("business_day_to,%s", report.BusinessDayTo),
		fmt.Sprintf("sale_count,%d", report.SaleCount),
		fmt.Sprintf("system_sales,%s", reconcile.FormatCents(report.SystemSalesCents)),
		fmt.Sprintf("physical_cash,%s", reconcile.FormatCents(report.PhysicalCashCents)),
		fmt.Sprintf("online_bills,%s", reconcile.FormatCents(report.OnlineBillsCents)),
		fmt.Sprintf("others,%s", reconcile.FormatCents(report.OthersCents)),
		fmt.Sprintf("return_amount,%s", reconcile.FormatCents(report.ReturnAmountCents)),
		fmt.Sprintf("expenses,%s", reconcile.FormatCents(report.ExpensesCents)),
		fmt.Sprintf("net_physical_balance,%s", reconcile.FormatCents(report.NetPhysicalBalanceCents)),
		fmt.Sprintf("difference,%s", reconcile.FormatCents(report.DifferenceCents)),
		fmt.Sprintf("balanced,%t", report.Balanced),
	}
	return strings.Join(lines, "\n") + "\n"
}

func csvField(val string) string {
	if strings.ContainsAny(val, ",\"\n") {
		return `"` + strings.ReplaceAll(val, `"`, `""`) + `"`
	}
	return val
}

type reconciliationView struct {
	domain.ReconciliationReport
	SystemSales        string
	PhysicalCash       string
	OnlineBills        string
	Others             string
	ReturnAmount       string
	Expenses           string
	NetPhysicalBalance string
	Difference         string
}

// reconciliationHTMLTmpl renders the printable end-of-day report.
// All user-controlled fields are auto-escaped by html/template to prevent XSS.
var reconciliationHTMLTmpl = template.Must(template.New("reconciliation").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Cashier Reconciliation {{.BusinessDayFrom}} - {{.BusinessDayTo}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
    .diff { font-weight: bold; }
  </style>
</head>
<body>
  <h2>Cashier Reconciliation</h2>
  <p>Cashier: {{.CashierID}} | Business days: {{.BusinessDayFrom}} to {{.BusinessDayTo}} | Sales: {{.SaleCount}}</p>

  <h3>Declared Amounts</h3>
  <table>
    <tbody>
      <tr><td>Physical cash</td><td style="text-align:right;">{{.PhysicalCash}}</td></tr>
      <tr><td>Online bills</td><td style="text-align:right;">{{.OnlineBills}}</td></tr>
      <tr><td>Others</td><td style="text-align:right;">{{.Others}}</td></tr>
      <tr><td>Return amount</td><td style="text-align:right;">-{{.ReturnAmount}}</td></tr>
      <tr><td>Expenses</td><td style="text-align:right;">-{{.Expenses}}</td></tr>
    </tbody>
  </table>

  <h3>Result</h3>
  <table>
    <tbody>
      <tr><td>Net physical balance</td><td style="text-align:right;">{{.NetPhysicalBalance}}</td></tr>
      <tr><td>System sales</td><td style="text-align:right;">{{.SystemSales}}</td></tr>
      <tr class="diff"><td>Difference</td><td style="text-align:right;">{{.Difference}}</td></tr>
      <tr><td>Balanced</td><td style="text-align:right;">{{.Balanced}}</td></tr>
    </tbody>
  </table>
  <p>Generated at {{.GeneratedAt}}</p>
</body>
</html>
`))

func reconciliationToPrintableHTML(report domain.ReconciliationReport) string {
	view := reconciliationView{
		ReconciliationReport: report,
		SystemSales:          reconcile.FormatCents(report.SystemSalesCents),
		PhysicalCash:         reconcile.FormatCents(report.PhysicalCashCents),
		OnlineBills:          reconcile.FormatCents(report.OnlineBillsCents),
		Others:               reconcile.FormatCents(report.OthersCents),
		ReturnAmount:         reconcile.FormatCents(report.ReturnAmountCents),
		Expenses:             reconcile.FormatCents(report.ExpensesCents),
		NetPhysicalBalance:   reconcile.FormatCents(report.NetPhysicalBalanceCents),
		Difference:           reconcile.FormatCents(report.DifferenceCents),
	}
	var buf bytes.Buffer
	if err := reconciliationHTMLTmpl.Execute(&buf, view); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}

func parseTimeRange(r *http.Request) (time.Time, time.Time) {
	var from, to time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			from = parsed
		} else if parsed, err := time.Parse(domain.BusinessDayLayout, raw); err == nil {
			from = parsed
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			to = parsed
		} else if parsed, err := time.Parse(domain.BusinessDayLayout, raw); err == nil {
			to = parsed.AddDate(0, 0, 1)
		}
	}
	return from, to
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeServiceError maps service and store errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrBillNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrValidation), errors.Is(err, service.ErrInvalidBusinessDay),
		errors.Is(err, service.ErrEmptyBill), errors.Is(err, bill.ErrDealQuantityLock):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNotBillOwner):
		status = http.StatusForbidden
	default:
		if strings.Contains(err.Error(), "admin role required") {
			status = http.StatusForbidden
		}
	}
	writeError(w, status, err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeCSV(w http.ResponseWriter, filename string, payload []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
