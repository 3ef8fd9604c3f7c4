package payment

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a payment id has no stored record.
var ErrNotFound = errors.New("payment: not found")

// Store persists payments in SQLite. Amounts are stored as decimal strings
// to keep the ledger exact.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the payment database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount_required TEXT NOT NULL,
		amount_locked TEXT NOT NULL DEFAULT '0',
		amount_paid TEXT NOT NULL DEFAULT '0',
		amount_refunded TEXT NOT NULL DEFAULT '0',
		refund_ids TEXT NOT NULL DEFAULT '[]',
		buyer TEXT NOT NULL DEFAULT '{}',
		items TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_payments_external_id ON payments(external_id);
	`
	_, err := s.db.Exec(query)
	return err
}

// retry executes op with backoff on SQLITE_BUSY, which can surface when
// webhook delivery and a status poll land at the same time.
func (s *Store) retry(op func() error, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				time.Sleep(time.Duration(10*(1<<attempt)) * time.Millisecond)
				continue
			}
		} else {
			return err
		}
	}
	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// Save inserts or updates a payment record.
func (s *Store) Save(p *Payment) error {
	buyer, err := json.Marshal(p.Buyer)
	if err != nil {
		return fmt.Errorf("failed to marshal buyer: %w", err)
	}
	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}
	refundIDs, err := json.Marshal(p.AppliedRefunds())
	if err != nil {
		return fmt.Errorf("failed to marshal refund ids: %w", err)
	}

	query := `
	INSERT INTO payments (
		id, status, external_id, currency, description,
		amount_required, amount_locked, amount_paid, amount_refunded,
		refund_ids, buyer, items
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		external_id = excluded.external_id,
		amount_locked = excluded.amount_locked,
		amount_paid = excluded.amount_paid,
		amount_refunded = excluded.amount_refunded,
		refund_ids = excluded.refund_ids,
		updated_at = CURRENT_TIMESTAMP
	`
	return s.retry(func() error {
		_, err := s.db.Exec(query,
			p.ID(), string(p.Status()), p.ExternalID(), p.Currency, p.Description,
			p.AmountRequired.String(), p.AmountLocked.String(),
			p.AmountPaid.String(), p.AmountRefunded.String(),
			string(refundIDs), string(buyer), string(items),
		)
		return err
	}, 3)
}

// Get loads a payment by id.
func (s *Store) Get(id string) (*Payment, error) {
	query := `
	SELECT id, status, external_id, currency, description,
	       amount_required, amount_locked, amount_paid, amount_refunded,
	       refund_ids, buyer, items
	FROM payments WHERE id = ?
	`
	var (
		pid, status, externalID, currency, description string
		required, locked, paid, refunded               string
		refundIDsJSON, buyerJSON, itemsJSON            string
	)
	err := s.db.QueryRow(query, id).Scan(
		&pid, &status, &externalID, &currency, &description,
		&required, &locked, &paid, &refunded,
		&refundIDsJSON, &buyerJSON, &itemsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment %s: %w", id, err)
	}

	p := Restore(pid, Status(status))
	p.Currency = currency
	p.Description = description
	if externalID != "" {
		if err := p.SetExternalID(externalID); err != nil {
			return nil, err
		}
	}
	if p.AmountRequired, err = decimal.NewFromString(required); err != nil {
		return nil, fmt.Errorf("corrupt amount_required for %s: %w", id, err)
	}
	if p.AmountLocked, err = decimal.NewFromString(locked); err != nil {
		return nil, fmt.Errorf("corrupt amount_locked for %s: %w", id, err)
	}
	if p.AmountPaid, err = decimal.NewFromString(paid); err != nil {
		return nil, fmt.Errorf("corrupt amount_paid for %s: %w", id, err)
	}
	if p.AmountRefunded, err = decimal.NewFromString(refunded); err != nil {
		return nil, fmt.Errorf("corrupt amount_refunded for %s: %w", id, err)
	}
	var refundIDs []string
	if err := json.Unmarshal([]byte(refundIDsJSON), &refundIDs); err != nil {
		return nil, fmt.Errorf("corrupt refund_ids for %s: %w", id, err)
	}
	for _, rid := range refundIDs {
		p.RecordRefund(rid)
	}
	if err := json.Unmarshal([]byte(buyerJSON), &p.Buyer); err != nil {
		return nil, fmt.Errorf("corrupt buyer for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(itemsJSON), &p.Items); err != nil {
		return nil, fmt.Errorf("corrupt items for %s: %w", id, err)
	}
	return p, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
