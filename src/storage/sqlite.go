package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"options-observer/src/helpers"
	"options-observer/src/logger"
	"options-observer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

// AsyncSQLiteDB is the file-backed instrument store.
type AsyncSQLiteDB struct {
	Path   string
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(path string, log *logger.Logger) *AsyncSQLiteDB {
	return &AsyncSQLiteDB{
		Path:   path,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	if dir := filepath.Dir(d.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return helpers.NewDatabaseError("creating data directory", err)
		}
	}

	db, err := sql.Open("sqlite", d.Path)
	if err != nil {
		return helpers.NewDatabaseError("opening sqlite", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("opening sqlite", err)
	}

	// single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	d.DB = db

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS options (
			token TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			strike REAL NOT NULL,
			opt_type TEXT NOT NULL,
			expiry TEXT NOT NULL,
			lot_size INTEGER NOT NULL,
			tick_size REAL NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_options_expiry ON options(expiry)`,
		`CREATE INDEX IF NOT EXISTS idx_options_strike ON options(strike)`,
		`CREATE INDEX IF NOT EXISTS idx_options_opt_type ON options(opt_type)`,
	}
	for _, q := range statements {
		if _, err := d.DB.Exec(q); err != nil {
			return helpers.NewDatabaseError("creating options table", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveOptions(options []models.MResolvedOption) error {
	if len(options) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO options (token, symbol, strike, opt_type, expiry, lot_size, tick_size, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
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

func (d *AsyncSQLiteDB) GetOptionsByExpiry(expiry string) ([]models.MResolvedOption, error) {
	rows, err := d.DB.Query(`SELECT `+optionColumns+` FROM options WHERE expiry = ? ORDER BY strike, opt_type`, expiry)
	if err != nil {
		return nil, helpers.NewDatabaseError("query by expiry", err)
	}
	return scanOptions(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) GetOptionsInStrikeRange(min, max float64) ([]models.MResolvedOption, error) {
	rows, err := d.DB.Query(`SELECT `+optionColumns+` FROM options WHERE strike BETWEEN ? AND ? ORDER BY strike, opt_type`, min, max)
	if err != nil {
		return nil, helpers.NewDatabaseError("query by strike range", err)
	}
	return scanOptions(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) GetAllExpiries() ([]string, error) {
	rows, err := d.DB.Query(`SELECT DISTINCT expiry FROM options ORDER BY expiry`)
	if err != nil {
		return nil, helpers.NewDatabaseError("query expiries", err)
	}
	return scanStrings(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) GetOptionByToken(token string) (*models.MResolvedOption, error) {
	var o models.MResolvedOption
	err := d.DB.QueryRow(`SELECT `+optionColumns+` FROM options WHERE token = ?`, token).
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

// CleanupExpired deletes contracts that expired before the given YYYY-MM-DD.
func (d *AsyncSQLiteDB) CleanupExpired(before string) (int64, error) {
	res, err := d.DB.Exec(`DELETE FROM options WHERE expiry < ?`, before)
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

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
