package repository

import (
	"context"

	"sparkpark/backend/services/parking-service/internal/billing"
	"sparkpark/backend/services/parking-service/internal/gateway"
	"sparkpark/backend/services/parking-service/internal/models"
)

// ReceiptRepository reads receipts owned by the current principal. Receipts are written only by
// SessionRepository.Stop and are never updated or deleted.
type ReceiptRepository struct {
	gw gateway.Gateway
}

// NewReceiptRepository returns repository.
func NewReceiptRepository(gw gateway.Gateway) *ReceiptRepository {
	return &ReceiptRepository{gw: gw}
}

// ListForPrincipal returns the caller's receipts, most recently ended first. An unauthenticated
// caller gets an empty list.
func (r *ReceiptRepository) ListForPrincipal(ctx context.Context) ([]models.Receipt, error) {
	principalID, ok := r.gw.CurrentPrincipal(ctx)
	if !ok {
		return []models.Receipt{}, nil
	}

	rows, err := r.gw.Query(ctx, gateway.TableReceipts, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("principal_id", principalID)},
		Order:   []gateway.Order{gateway.Desc("ended_at"), gateway.Desc("created_at")},
	})
	if err != nil {
		return nil, err
	}
	receipts := make([]models.Receipt, 0, len(rows))
	for _, row := range rows {
		receipts = append(receipts, receiptFromRecord(row))
	}
	return receipts, nil
}

// FindBySession returns the caller's receipt for sessionID, or nil when the session has none.
func (r *ReceiptRepository) FindBySession(ctx context.Context, sessionID string) (*models.Receipt, error) {
	principalID, ok := r.gw.CurrentPrincipal(ctx)
	if !ok {
		return nil, nil
	}
	return findBySession(ctx, r.gw, principalID, sessionID)
}

func findBySession(ctx context.Context, gw gateway.Gateway, principalID, sessionID string) (*models.Receipt, error) {
	rows, err := gw.Query(ctx, gateway.TableReceipts, gateway.Query{
		Filters: []gateway.Filter{
			gateway.Eq("session_id", sessionID),
			gateway.Eq("principal_id", principalID),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	receipt := receiptFromRecord(rows[0])
	return &receipt, nil
}

func insertReceipt(ctx context.Context, gw gateway.Gateway, receipt models.Receipt) (*models.Receipt, error) {
	row, err := gw.Insert(ctx, gateway.TableReceipts, gateway.Record{
		"principal_id":     receipt.PrincipalID,
		"session_id":       receipt.SessionID,
		"zone_id":          receipt.ZoneID,
		"zone_name":        receipt.ZoneName,
		"zone_code":        receipt.ZoneCode,
		"started_at":       receipt.StartedAt,
		"ended_at":         receipt.EndedAt,
		"duration_seconds": receipt.DurationSeconds,
		"rate_minor":       int64(receipt.RatePerMinute),
		"total_cost_minor": int64(receipt.TotalCost),
		"currency":         receipt.Currency,
	})
	if err != nil {
		return nil, err
	}
	created := receiptFromRecord(row)
	return &created, nil
}

func receiptFromRecord(row gateway.Record) models.Receipt {
	return models.Receipt{
		ID:              row.String("id"),
		PrincipalID:     row.String("principal_id"),
		SessionID:       row.String("session_id"),
		ZoneID:          row.String("zone_id"),
		ZoneName:        row.String("zone_name"),
		ZoneCode:        row.String("zone_code"),
		StartedAt:       row.Time("started_at"),
		EndedAt:         row.Time("ended_at"),
		DurationSeconds: row.Int64("duration_seconds"),
		RatePerMinute:   billing.Amount(row.Int64("rate_minor")),
		TotalCost:       billing.Amount(row.Int64("total_cost_minor")),
		Currency:        row.String("currency"),
		CreatedAt:       row.Time("created_at"),
	}
}
