package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"options-observer/src/helpers"
	"options-observer/src/logger"
	"options-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

// PostgresDB keeps the instrument store in a schema named after the binary.
type PostgresDB struct {
	DSN    string
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(dsn string, log *logger.Logger) (*PostgresDB, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		DSN:    dsn,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table() string {
	return fmt.Sprintf(`"%s"."options"`, d.Schema)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.DSN)
	if err != nil {
		return helpers.NewDatabaseError("opening postgres", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("opening postgres", err)
	}
	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("creating schema %s", d.Schema), err)
	}

	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				token TEXT PRIMARY KEY,
				symbol TEXT NOT NULL,
				strike DOUBLE PRECISION NOT NULL,
				opt_type TEXT NOT NULL,
				expiry TEXT NOT NULL,
				lot_size INTEGER NOT NULL,
				tick_size DOUBLE PRECISION NOT NULL,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`, d.table()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_options_expiry ON %s (expiry)`, d.table()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_options_strike ON %s (strike)`, d.table()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_options_opt_type ON %s (opt_type)`, d.table()),
	}
	for _, q := range statements {
		if _, err := d.DB.Exec(q); err != nil {
			return helpers.NewDatabaseError("creating options table", err)
		}
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveOptions(options []models.MResolvedOption) error {
	if len(options) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (token, symbol, strike, opt_type, expiry, lot_size, tick_size, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		ON CONFLICT (token) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			strike = EXCLUDED.strike,
			opt_type = EXCLUDED.opt_type,
			expiry = EXCLUDED.expiry,
			lot_size = EXCLUDED.lot_size,
			tick_size = EXCLUDED.tick_size,
			updated_at = EXCLUDED.updated_at
	`, d.table()))
	if err != nil {
		return helpers.NewDatabaseError("prepare upsert", err)
	}
	defer stmt.Close()

	for _, o := range options {
		if _, err := stmt.Exec(o.Token, o.Symbol, o.Strike, o.OptType, o.Expiry, o.LotSize, o.TickSize); err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("saving option %s", o.Token), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetOptionsByExpiry(expiry string) ([]models.MResolvedOption, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`SELECT %s FROM %s WHERE expiry = $1 ORDER BY strike, opt_type`, optionColumns, d.table()), expiry)
	if err != nil {
		return nil, helpers.NewDatabaseError("query by expiry", err)
	}
	return scanOptions(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetOptionsInStrikeRange(min, max float64) ([]models.MResolvedOption, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`SELECT %s FROM %s WHERE strike BETWEEN $1 AND $2 ORDER BY strike, opt_type`, optionColumns, d.table()), min, max)
	if err != nil {
		return nil, helpers.NewDatabaseError("query by strike range", err)
	}
	return scanOptions(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetAllExpiries() ([]string, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`SELECT DISTINCT expiry FROM %s ORDER BY expiry`, d.table()))
	if err != nil {
		return nil, helpers.NewDatabaseError("query expiries", err)
	}
	return scanStrings(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetOptionByToken(token string) (*models.MResolvedOption, error) {
	var o models.MResolvedOption
	err := d.DB.QueryRow(fmt.Sprintf(`SELECT %s FROM %s WHERE token = $1`, optionColumns, d.table()), token).
		Scan(&o.Token, &o.Symbol, &o.Strike, &o.OptType, &o.Expiry, &o.LotSize, &o.TickSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helpers.NewDatabaseError("query by token", err)
	}
	return &o, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupExpired(before string) (int64, error) {
	res, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM %s WHERE expiry < $1`, d.table()), before)
	if err != nil {
		return 0, helpers.NewDatabaseError("cleanup", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		d.Logger.Info("Removed %d expired contracts (before %s)", n, before)
	}
	return n, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
