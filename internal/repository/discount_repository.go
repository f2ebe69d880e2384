package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// DiscountRepo reads the promotion catalog.
type DiscountRepo struct {
	db *sql.DB
}

// NewDiscountRepo returns a new DiscountRepo bound to the provided database.
func NewDiscountRepo(db *sql.DB) *DiscountRepo { return &DiscountRepo{db: db} }

const discountColumns = `id, name, amount, active, recurrent, start_date, end_date`

// ActiveDiscounts returns every discount flagged active.  The validity
// window is not applied here; pricing.ApplicableDiscounts does that.
func (r *DiscountRepo) ActiveDiscounts(ctx context.Context) ([]model.Discount, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE active = TRUE ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return scanDiscounts(rows)
}

func scanDiscounts(rows *sql.Rows) ([]model.Discount, error) {
	defer rows.Close()
	out := []model.Discount{}
	for rows.Next() {
		var d model.Discount
		var start, end sql.NullTime
		if err := rows.Scan(&d.ID, &d.Name, &d.Amount, &d.Active, &d.Recurrent, &start, &end); err != nil {
			return nil, err
		}
		if start.Valid {
			t := start.Time.UTC()
			d.StartDate = &t
		}
		if end.Valid {
			t := end.Time.UTC()
			d.EndDate = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
