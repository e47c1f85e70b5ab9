package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"alshawaya/backend/internal/domain"
	"alshawaya/backend/internal/reconcile"
	"alshawaya/backend/internal/store"
	"alshawaya/backend/internal/xid"

	"github.com/shopspring/decimal"
)

// Menu item CSV columns: code,name,price,category. Deal CSV columns:
// deal_number,name,description,items,is_active where items is a JSON
// array of bundle lines. Prices are decimal strings in whole currency.

// ImportMenuItemsCSV upserts menu items row by row, keyed by code. A
// bad row is counted and skipped; the rest of the batch still lands.
func (s *Service) ImportMenuItemsCSV(ctx context.Context, r io.Reader) (domain.ImportResult, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.ImportResult{}, fmt.Errorf("admin role required")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var result domain.ImportResult
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read csv: %w", err)
		}
		rowNum++
		if rowNum == 1 && looksLikeHeader(record, "code") {
			continue
		}
		if len(record) < 3 {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: expected code,name,price,category", rowNum))
			continue
		}

		code := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])
		priceCents, err := parsePriceCents(record[2])
		if err != nil || code == "" || name == "" {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: invalid item fields", rowNum))
			continue
		}
		category := ""
		if len(record) > 3 {
			category = strings.TrimSpace(record[3])
		}

		existing, err := s.repo.GetMenuItemByCode(ctx, code)
		switch {
		case err == nil:
			updated := *existing
			updated.Name = name
			updated.PriceCents = priceCents
			updated.Category = category
			if _, err := s.repo.UpdateMenuItem(ctx, updated); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
				continue
			}
			result.Updated++
		case errors.Is(err, store.ErrNotFound):
			item := domain.MenuItem{
				ID:         xid.New("item"),
				Code:       code,
				Name:       name,
				PriceCents: priceCents,
				Category:   category,
			}
			if _, err := s.repo.CreateMenuItem(ctx, item); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
				continue
			}
			result.Added++
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
		}
	}

	s.logAudit(ctx, "menu_items_import", "menu_item", "", fmt.Sprintf("added=%d,updated=%d,failed=%d", result.Added, result.Updated, result.Failed))
	s.invalidateCatalog(ctx)
	return result, nil
}

// ImportDealsCSV upserts deals row by row, keyed by deal number. The
// stored total is always recomputed from the parsed item lines.
func (s *Service) ImportDealsCSV(ctx context.Context, r io.Reader) (domain.ImportResult, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.ImportResult{}, fmt.Errorf("admin role required")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var result domain.ImportResult
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read csv: %w", err)
		}
		rowNum++
		if rowNum == 1 && looksLikeHeader(record, "deal_number") {
			continue
		}
		if len(record) < 4 {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: expected deal_number,name,description,items,is_active", rowNum))
			continue
		}

		number := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])
		description := strings.TrimSpace(record[2])

		var items []domain.DealItem
		if err := json.Unmarshal([]byte(record[3]), &items); err != nil || number == "" || name == "" || len(items) == 0 {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: invalid deal fields", rowNum))
			continue
		}
		items, err = normalizeDealItems(items)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: invalid deal items", rowNum))
			continue
		}
		isActive := true
		if len(record) > 4 && strings.TrimSpace(record[4]) != "" {
			isActive = strings.EqualFold(strings.TrimSpace(record[4]), "true")
		}

		existing, err := s.repo.GetDealByNumber(ctx, number)
		switch {
		case err == nil:
			updated := *existing
			updated.Name = name
			updated.Description = description
			updated.Items = items
			updated.CalculatedTotalCents = dealTotal(items)
			updated.IsActive = isActive
			updated.UpdatedAt = time.Now().UTC()
			if _, err := s.repo.UpdateDeal(ctx, updated); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
				continue
			}
			result.Updated++
		case errors.Is(err, store.ErrNotFound):
			now := time.Now().UTC()
			deal := domain.Deal{
				ID:                   xid.New("deal"),
				DealNumber:           number,
				Name:                 name,
				Description:          description,
				Items:                items,
				CalculatedTotalCents: dealTotal(items),
				IsActive:             isActive,
				CreatedAt:            now,
				UpdatedAt:            now,
			}
			if _, err := s.repo.CreateDeal(ctx, deal); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
				continue
			}
			result.Added++
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
		}
	}

	s.logAudit(ctx, "deals_import", "deal", "", fmt.Sprintf("added=%d,updated=%d,failed=%d", result.Added, result.Updated, result.Failed))
	s.invalidateCatalog(ctx)
	return result, nil
}

// ExportMenuItemsCSV writes all menu items in the import column order.
func (s *Service) ExportMenuItemsCSV(ctx context.Context, w io.Writer) error {
	items, err := s.repo.ListMenuItems(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"code", "name", "price", "category"}); err != nil {
		return err
	}
	for _, it := range items {
		row := []string{it.Code, it.Name, reconcile.FormatCents(it.PriceCents), it.Category}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportDealsCSV writes all deals in the import column order.
func (s *Service) ExportDealsCSV(ctx context.Context, w io.Writer) error {
	deals, err := s.repo.ListDeals(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"deal_number", "name", "description", "items", "is_active"}); err != nil {
		return err
	}
	for _, d := range deals {
		payload, err := json.Marshal(d.Items)
		if err != nil {
			return err
		}
		row := []string{d.DealNumber, d.Name, d.Description, string(payload), fmt.Sprintf("%t", d.IsActive)}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func parsePriceCents(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	cents := d.Mul(decimal.NewFromInt(100)).IntPart()
	if cents < 0 {
		return 0, store.ErrValidation
	}
	return cents, nil
}

func looksLikeHeader(record []string, firstColumn string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), firstColumn)
}
