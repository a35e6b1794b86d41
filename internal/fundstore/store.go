package fundstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"FIILens/internal/model"
)

const dateLayout = "2006-01-02"

// ErrFundNotFound means the ticker is absent from the fund registry.
// Distinct from a registered fund with an empty book-value series.
var ErrFundNotFound = errors.New("fundstore: ticker not in fund registry")

// Store reads the fund registry and the book-value (VPA) history from a
// SQLite database. Interactive use is read-only; writes happen only through
// the offline filings loader. WAL mode keeps concurrent readers safe while
// a batch refresh runs.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes batch writes
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] fund store opened: %s", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cadastro_fiis (
			ticker TEXT PRIMARY KEY,
			cnpj   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vpa_historico (
			cnpj        TEXT NOT NULL,
			data_comptc TEXT NOT NULL,
			vpa         REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vpa_cnpj_data ON vpa_historico(cnpj, data_comptc)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// LookupFund resolves a canonical ticker to its registry entry.
func (s *Store) LookupFund(tickerCode string) (model.FundIdentity, error) {
	var f model.FundIdentity
	err := s.db.QueryRow(
		`SELECT ticker, cnpj FROM cadastro_fiis WHERE ticker = ?`, tickerCode,
	).Scan(&f.Ticker, &f.CNPJ)
	if err == sql.ErrNoRows {
		return model.FundIdentity{}, ErrFundNotFound
	}
	if err != nil {
		return model.FundIdentity{}, fmt.Errorf("lookup fund %s: %w", tickerCode, err)
	}
	return f, nil
}

// BookValueSeries returns the VPA history for a CNPJ in ascending date
// order. An empty slice means the fund is registered but has no filings.
func (s *Store) BookValueSeries(cnpj string) ([]model.BookValueRecord, error) {
	rows, err := s.db.Query(
		`SELECT cnpj, data_comptc, vpa FROM vpa_historico WHERE cnpj = ? ORDER BY data_comptc ASC`, cnpj,
	)
	if err != nil {
		return nil, fmt.Errorf("book-value series %s: %w", cnpj, err)
	}
	defer rows.Close()

	var recs []model.BookValueRecord
	for rows.Next() {
		var rec model.BookValueRecord
		var day string
		if err := rows.Scan(&rec.CNPJ, &day, &rec.VPA); err != nil {
			return nil, fmt.Errorf("scan book-value row: %w", err)
		}
		d, err := time.Parse(dateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("parse report date %q: %w", day, err)
		}
		rec.Date = model.Day(d)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Tickers lists every registered fund ticker, sorted.
func (s *Store) Tickers() ([]string, error) {
	rows, err := s.db.Query(`SELECT ticker FROM cadastro_fiis ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("list fund tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertFunds inserts or updates registry entries.
func (s *Store) UpsertFunds(funds []model.FundIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin registry upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO cadastro_fiis (ticker, cnpj) VALUES (?, ?)
		 ON CONFLICT(ticker) DO UPDATE SET cnpj = excluded.cnpj`)
	if err != nil {
		return fmt.Errorf("prepare registry upsert: %w", err)
	}
	defer stmt.Close()

	for _, f := range funds {
		if _, err := stmt.Exec(f.Ticker, f.CNPJ); err != nil {
			return fmt.Errorf("upsert fund %s: %w", f.Ticker, err)
		}
	}
	return tx.Commit()
}

// ReplaceBookValues swaps the whole vpa_historico table for the given
// records in one transaction, mirroring the wholesale-overwrite contract of
// the filings loader.
func (s *Store) ReplaceBookValues(recs []model.BookValueRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin book-value replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM vpa_historico`); err != nil {
		return fmt.Errorf("clear vpa_historico: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO vpa_historico (cnpj, data_comptc, vpa) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare book-value insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.Exec(rec.CNPJ, rec.Date.Format(dateLayout), rec.VPA); err != nil {
			return fmt.Errorf("insert book value %s@%s: %w", rec.CNPJ, rec.Date.Format(dateLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[INFO] vpa_historico replaced: %d records", len(recs))
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
