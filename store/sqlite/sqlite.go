/*
Package sqlite provides a SQLite-backed implementation of contract.Store.

PURPOSE:
  Persists submitted maintenance contracts together with the quote snapshot
  they were priced with and their email/CRM delivery status.

KEY TABLES:
  contracts: One row per submission. Customer and mandate fields are
             columns; the full price breakdown is kept as quote_json so a
             later rate change never rewrites what the customer agreed to.

WRITE RULES:
  - Save inserts; a duplicate ID is rejected by the primary key
  - UpdateSync only touches the delivery columns
  - Nothing is ever deleted

INDEXES:
  - idx_contracts_created: List (newest first)
  - idx_contracts_sync:    ListPendingSync (retry scheduler)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's single writer.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers do not block
  the writer.

USAGE:
  store, err := sqlite.New("./data/contracts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := contract.NewService(store, email, crm, log)

SEE ALSO:
  - contract/store.go: Interface definition
  - contract/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aircare/contract-engine/contract"
	"github.com/aircare/contract-engine/pricing"
)

// Store implements contract.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ contract.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,

		-- Customer
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		address TEXT NOT NULL,
		postal_code TEXT NOT NULL,
		city TEXT NOT NULL,
		customer_number TEXT,
		last_quote_number TEXT,
		last_invoice_number TEXT,

		-- Selection
		contract_type TEXT NOT NULL,
		payment_frequency TEXT NOT NULL,
		outdoor_units INTEGER NOT NULL,
		indoor_units INTEGER NOT NULL,

		-- SEPA mandate (recurring tiers only)
		iban TEXT,
		account_holder TEXT,
		mandate_date TEXT,
		signature TEXT,

		-- Pricing snapshot
		total_price TEXT NOT NULL,
		quote_json TEXT NOT NULL,

		-- Delivery
		email_status TEXT NOT NULL DEFAULT 'pending',
		crm_status TEXT NOT NULL DEFAULT 'pending',
		sync_attempts INTEGER NOT NULL DEFAULT 0,
		last_sync_error TEXT,

		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_created
		ON contracts(created_at);
	CREATE INDEX IF NOT EXISTS idx_contracts_sync
		ON contracts(email_status, crm_status, sync_attempts);
	`

	_, err := s.db.Exec(schema)
	return err
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectContract = `
	SELECT id, first_name, last_name, email, phone, address, postal_code, city,
	       customer_number, last_quote_number, last_invoice_number,
	       contract_type, payment_frequency, outdoor_units, indoor_units,
	       iban, account_holder, mandate_date, signature,
	       quote_json, email_status, crm_status, sync_attempts, last_sync_error,
	       created_at
	FROM contracts
`

// =============================================================================
// CONTRACT STORE (contract.Store interface)
// =============================================================================

// Save inserts a new contract.
func (s *Store) Save(ctx context.Context, c *contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quoteJSON, err := json.Marshal(c.Quote)
	if err != nil {
		return fmt.Errorf("failed to encode quote: %w", err)
	}

	var iban, holder, mandate, signature sql.NullString
	if c.Sepa != nil {
		iban = nullString(c.Sepa.IBAN)
		holder = nullString(c.Sepa.AccountHolder)
		if !c.Sepa.MandateDate.IsZero() {
			mandate = nullString(c.Sepa.MandateDate.UTC().Format(time.RFC3339))
		}
		signature = nullString(c.Sepa.Signature)
	}

	query := `
		INSERT INTO contracts
		(id, first_name, last_name, email, phone, address, postal_code, city,
		 customer_number, last_quote_number, last_invoice_number,
		 contract_type, payment_frequency, outdoor_units, indoor_units,
		 iban, account_holder, mandate_date, signature,
		 total_price, quote_json, email_status, crm_status, sync_attempts, last_sync_error,
		 created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cu := c.Customer
	_, err = s.db.ExecContext(ctx, query,
		c.ID,
		cu.FirstName, cu.LastName, cu.Email, cu.Phone, cu.Address, cu.PostalCode, cu.City,
		nullString(cu.CustomerNumber), nullString(cu.LastQuoteNumber), nullString(cu.LastInvoiceNumber),
		string(cu.Tier), string(cu.Frequency), cu.OutdoorUnits, cu.IndoorUnits,
		iban, holder, mandate, signature,
		c.Quote.Total.String(), string(quoteJSON),
		string(statusOrPending(c.EmailStatus)), string(statusOrPending(c.CRMStatus)),
		c.SyncAttempts, nullString(c.LastSyncError),
		c.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("contract %s already exists", c.ID)
		}
		return fmt.Errorf("failed to save contract: %w", err)
	}
	return nil
}

// Get returns a contract by ID.
func (s *Store) Get(ctx context.Context, id string) (*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectContract+" WHERE id = ?", id)
	c, err := scanContract(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("id %s: %w", id, contract.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all contracts, newest first.
func (s *Store) List(ctx context.Context) ([]contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryContracts(ctx, selectContract+" ORDER BY created_at DESC, id DESC")
}

// ListPendingSync returns contracts the retry scheduler still has to deliver.
func (s *Store) ListPendingSync(ctx context.Context, maxAttempts int) ([]contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectContract + `
		WHERE (email_status IN ('pending', 'failed') OR crm_status IN ('pending', 'failed'))
		  AND sync_attempts < ?
		ORDER BY created_at ASC, id ASC
	`
	return s.queryContracts(ctx, query, maxAttempts)
}

// UpdateSync records a delivery round.
func (s *Store) UpdateSync(ctx context.Context, id string, u contract.SyncUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE contracts
		SET email_status = ?, crm_status = ?, sync_attempts = ?, last_sync_error = ?
		WHERE id = ?
	`, string(u.EmailStatus), string(u.CRMStatus), u.SyncAttempts, nullString(u.LastSyncError), id)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("id %s: %w", id, contract.ErrNotFound)
	}
	return nil
}

func (s *Store) queryContracts(ctx context.Context, query string, args ...any) ([]contract.Contract, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var result []contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner) (contract.Contract, error) {
	var (
		c                                 contract.Contract
		tier, freq                        string
		customerNo, quoteNo, invoiceNo    sql.NullString
		iban, holder, mandate, signature  sql.NullString
		quoteJSON, emailStatus, crmStatus string
		lastErr                           sql.NullString
		createdAt                         string
	)
	cu := &c.Customer

	err := row.Scan(
		&c.ID, &cu.FirstName, &cu.LastName, &cu.Email, &cu.Phone, &cu.Address, &cu.PostalCode, &cu.City,
		&customerNo, &quoteNo, &invoiceNo,
		&tier, &freq, &cu.OutdoorUnits, &cu.IndoorUnits,
		&iban, &holder, &mandate, &signature,
		&quoteJSON, &emailStatus, &crmStatus, &c.SyncAttempts, &lastErr,
		&createdAt,
	)
	if err != nil {
		return c, err
	}

	cu.Tier = pricing.Tier(tier)
	cu.Frequency = pricing.PaymentFrequency(freq)
	cu.CustomerNumber = customerNo.String
	cu.LastQuoteNumber = quoteNo.String
	cu.LastInvoiceNumber = invoiceNo.String

	if iban.Valid {
		c.Sepa = &contract.Sepa{
			IBAN:          iban.String,
			AccountHolder: holder.String,
			Signature:     signature.String,
		}
		if mandate.Valid {
			c.Sepa.MandateDate, _ = time.Parse(time.RFC3339, mandate.String)
		}
	}

	if err := json.Unmarshal([]byte(quoteJSON), &c.Quote); err != nil {
		return c, fmt.Errorf("contract %s: failed to decode quote: %w", c.ID, err)
	}

	c.EmailStatus = contract.SyncStatus(emailStatus)
	c.CRMStatus = contract.SyncStatus(crmStatus)
	c.LastSyncError = lastErr.String
	c.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return c, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func statusOrPending(s contract.SyncStatus) contract.SyncStatus {
	if s == "" {
		return contract.SyncPending
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
