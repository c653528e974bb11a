package storage

import (
	"database/sql"

	"options-observer/src/models"
)

const optionColumns = "token, symbol, strike, opt_type, expiry, lot_size, tick_size"

// -----------------------------------------------------------------------------

// scanOptions reads rows selected with optionColumns.
func scanOptions(rows *sql.Rows) ([]models.MResolvedOption, error) {
	defer rows.Close()

	var out []models.MResolvedOption
	for rows.Next() {
		var o models.MResolvedOption
		if err := rows.Scan(&o.Token, &o.Symbol, &o.Strike, &o.OptType, &o.Expiry, &o.LotSize, &o.TickSize); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
