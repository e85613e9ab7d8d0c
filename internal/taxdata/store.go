package taxdata

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS tax_years (
  year INTEGER PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS standard_deductions (
  year          INTEGER NOT NULL REFERENCES tax_years(year) ON DELETE CASCADE,
  filing_status TEXT    NOT NULL,
  amount        TEXT    NOT NULL,
  PRIMARY KEY (year, filing_status)
);
CREATE TABLE IF NOT EXISTS tax_brackets (
  year          INTEGER NOT NULL REFERENCES tax_years(year) ON DELETE CASCADE,
  family        TEXT    NOT NULL,
  jurisdiction  TEXT    NOT NULL DEFAULT '',
  position      INTEGER NOT NULL,
  filing_status TEXT    NOT NULL,
  min_income    TEXT    NOT NULL,
  max_income    TEXT,
  rate          TEXT    NOT NULL,
  PRIMARY KEY (year, family, jurisdiction, position)
);
`

// Store persists tax data by year in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) a SQLite tax data store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save validates td and replaces any stored data for its year.
func (s *Store) Save(ctx context.Context, td *domain.TaxData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if td == nil {
		return fmt.Errorf("tax data is required")
	}
	if err := Validate(td); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"tax_brackets", "standard_deductions", "tax_years"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE year = ?`, td.Year); err != nil {
			return fmt.Errorf("clear %s for %d: %w", table, td.Year, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO tax_years (year) VALUES (?)`, td.Year); err != nil {
		return fmt.Errorf("insert year %d: %w", td.Year, err)
	}
	for _, status := range domain.FilingStatuses {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO standard_deductions (year, filing_status, amount) VALUES (?, ?, ?)`,
			td.Year, string(status), td.StandardDeduction[status].String(),
		); err != nil {
			return fmt.Errorf("insert standard deduction: %w", err)
		}
	}

	insert := func(family, jurisdiction string, table domain.TaxBracketTable) error {
		for i, b := range table {
			var upper sql.NullString
			if b.Max != nil {
				upper = sql.NullString{String: b.Max.String(), Valid: true}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tax_brackets (year, family, jurisdiction, position, filing_status, min_income, max_income, rate)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				td.Year, family, jurisdiction, i, string(b.FilingStatus), b.Min.String(), upper, b.Rate.String(),
			); err != nil {
				return fmt.Errorf("insert %s bracket %d: %w", family, i, err)
			}
		}
		return nil
	}
	if err := insert(calculation.FamilyFederal, "", td.Federal); err != nil {
		return err
	}
	if err := insert(calculation.FamilyCapitalGains, "", td.CapitalGains); err != nil {
		return err
	}
	for _, state := range States(td) {
		if err := insert(calculation.FamilyState, state, td.States[state]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tax year %d: %w", td.Year, err)
	}
	return nil
}

// Load returns the tax data stored for year. A year that was never saved is
// a *calculation.DataError.
func (s *Store) Load(ctx context.Context, year int) (*domain.TaxData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var found int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tax_years WHERE year = ?`, year).Scan(&found)
	if err != nil {
		return nil, fmt.Errorf("lookup tax year %d: %w", year, err)
	}
	if found == 0 {
		return nil, &calculation.DataError{Source: "tax store", Detail: fmt.Sprintf("no tax data for year %d", year)}
	}

	td := &domain.TaxData{
		Year:              year,
		StandardDeduction: make(map[domain.FilingStatus]decimal.Decimal),
		States:            make(map[string]domain.TaxBracketTable),
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT filing_status, amount FROM standard_deductions WHERE year = ?`, year)
	if err != nil {
		return nil, fmt.Errorf("query standard deductions: %w", err)
	}
	for rows.Next() {
		var status, amount string
		if err := rows.Scan(&status, &amount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan standard deduction: %w", err)
		}
		v, err := decimal.NewFromString(amount)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("standard deduction %s: %w", status, err)
		}
		td.StandardDeduction[domain.FilingStatus(status)] = v
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.sqlDB.QueryContext(ctx,
		`SELECT family, jurisdiction, filing_status, min_income, max_income, rate
		   FROM tax_brackets WHERE year = ? ORDER BY family, jurisdiction, position`, year)
	if err != nil {
		return nil, fmt.Errorf("query tax brackets: %w", err)
	}
	for rows.Next() {
		var family, jurisdiction, status, lower, rate string
		var upper sql.NullString
		if err := rows.Scan(&family, &jurisdiction, &status, &lower, &upper, &rate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan tax bracket: %w", err)
		}
		b, err := parseBracket(status, lower, upper, rate)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s %s bracket: %w", family, jurisdiction, err)
		}
		switch family {
		case calculation.FamilyFederal:
			td.Federal = append(td.Federal, b)
		case calculation.FamilyCapitalGains:
			td.CapitalGains = append(td.CapitalGains, b)
		case calculation.FamilyState:
			td.States[jurisdiction] = append(td.States[jurisdiction], b)
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return td, nil
}

// Years lists the stored years in ascending order.
func (s *Store) Years(ctx context.Context) ([]int, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT year FROM tax_years ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("query tax years: %w", err)
	}
	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan tax year: %w", err)
		}
		years = append(years, y)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return years, nil
}

// Latest loads the most recent stored year.
func (s *Store) Latest(ctx context.Context) (*domain.TaxData, error) {
	years, err := s.Years(ctx)
	if err != nil {
		return nil, err
	}
	if len(years) == 0 {
		return nil, &calculation.DataError{Source: "tax store", Detail: "store is empty"}
	}
	return s.Load(ctx, years[len(years)-1])
}

func parseBracket(status, lower string, upper sql.NullString, rate string) (domain.TaxBracket, error) {
	b := domain.TaxBracket{FilingStatus: domain.FilingStatus(status)}
	var err error
	if b.Min, err = decimal.NewFromString(lower); err != nil {
		return b, err
	}
	if b.Rate, err = decimal.NewFromString(rate); err != nil {
		return b, err
	}
	if upper.Valid {
		v, err := decimal.NewFromString(upper.String)
		if err != nil {
			return b, err
		}
		b.Max = &v
	}
	return b, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate rows: %w", err)
	}
	return rows.Close()
}
