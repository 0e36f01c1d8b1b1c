package webapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vendlink/vendlink/internal/domain"
)

// listPayments pages through the persisted payment audit records.
// Supports ?device= and a free-text ?q= over payment id and payer email.
func listPayments(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.Payment{})
	if device := strings.TrimSpace(c.QueryParam("device")); device != "" {
		db = db.Where("device = ?", device)
	}
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(payment_id) LIKE ? OR LOWER(payer_email) LIKE ?", like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query payments", err.Error())
	}

	var rows []domain.Payment
	if err := db.Order("paid_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query payments", err.Error())
	}

	return paged(c, rows, total, page, pageSize)
}
