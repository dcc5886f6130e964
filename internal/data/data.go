package data

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"cedarbackend/internal/logger"
)

// Global database instance
var (
	db   *sql.DB
	dbMu sync.RWMutex
)

// Connection pool configuration
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = time.Hour
	connMaxIdleTime = time.Minute * 15
	queryTimeout    = time.Second * 30
)

const TimeFormat = time.RFC3339

// ContactMessage is a stored contact-form submission.
type ContactMessage struct {
	ID          string
	Name        string
	Email       string
	Message     string
	SubmittedAt time.Time
}

// Subscriber is a stored newsletter signup.
type Subscriber struct {
	ID           string
	Email        string
	SubscribedAt time.Time
}

// CompletedOrder is the local record written after the commerce backend
// confirms an order. The backend owns the order; this is bookkeeping for
// support and reconciliation.
type CompletedOrder struct {
	ID           string
	OrderID      string
	RemoteCartID string
	Email        string
	AmountMinor  int64
	Currency     string
	CompletedAt  time.Time
}

// InitDB opens the database, configures pooling and bootstraps the schema.
func InitDB(dataSourceName string) error {
	dbMu.Lock()
	defer dbMu.Unlock()

	if db != nil {
		db.Close()
	}

	return initDBWithRetry(dataSourceName, 3)
}

func initDBWithRetry(dataSourceName string, maxRetries int) error {
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = sql.Open("sqlite", dataSourceName)
		if err != nil {
			logger.LogWarn("Database connection attempt %d failed: %v", attempt, err)
			if attempt < maxRetries {
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			return fmt.Errorf("failed to open database after %d attempts: %w", maxRetries, err)
		}

		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
		db.SetConnMaxIdleTime(connMaxIdleTime)

		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		err = db.PingContext(ctx)
		cancel()

		if err != nil {
			logger.LogWarn("Database ping attempt %d failed: %v", attempt, err)
			db.Close()
			if attempt < maxRetries {
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			return fmt.Errorf("database unreachable after %d attempts: %w", maxRetries, err)
		}

		if err := createSchema(); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}

		logger.LogInfo("Database initialized at %s", dataSourceName)
		return nil
	}
	return err
}

// GetDB returns the database handle, mainly for tests.
func GetDB() (*sql.DB, error) {
	dbMu.RLock()
	defer dbMu.RUnlock()

	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return db, nil
}

// CloseDB closes the database connection.
func CloseDB() {
	dbMu.Lock()
	defer dbMu.Unlock()

	if db != nil {
		db.Close()
		db = nil
	}
}

func createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contact_messages (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			message TEXT NOT NULL,
			submitted_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS newsletter_subscribers (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			subscribed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS completed_orders (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			remote_cart_id TEXT NOT NULL,
			email TEXT,
			amount_minor INTEGER NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'cad',
			completed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completed_orders_order_id ON completed_orders(order_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveContactMessage inserts a contact-form submission.
func SaveContactMessage(m ContactMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx,
		`INSERT INTO contact_messages (id, name, email, message, submitted_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Email, m.Message, m.SubmittedAt.Format(TimeFormat))
	if err != nil {
		return fmt.Errorf("saving contact message: %w", err)
	}
	return nil
}

// SaveSubscriber inserts a newsletter signup. Re-subscribing the same email
// is a no-op, not an error.
func SaveSubscriber(s Subscriber) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx,
		`INSERT INTO newsletter_subscribers (id, email, subscribed_at) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		s.ID, s.Email, s.SubscribedAt.Format(TimeFormat))
	if err != nil {
		return fmt.Errorf("saving subscriber: %w", err)
	}
	return nil
}

// SaveCompletedOrder records a successfully completed checkout.
func SaveCompletedOrder(o CompletedOrder) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx,
		`INSERT INTO completed_orders (id, order_id, remote_cart_id, email, amount_minor, currency, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OrderID, o.RemoteCartID, o.Email, o.AmountMinor, o.Currency, o.CompletedAt.Format(TimeFormat))
	if err != nil {
		return fmt.Errorf("saving completed order: %w", err)
	}
	return nil
}

// CountSubscribers returns the number of newsletter subscribers.
func CountSubscribers() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM newsletter_subscribers`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting subscribers: %w", err)
	}
	return count, nil
}

// GetCompletedOrderByOrderID looks up a recorded order.
func GetCompletedOrderByOrderID(orderID string) (*CompletedOrder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var o CompletedOrder
	var completedAt string
	err := db.QueryRowContext(ctx,
		`SELECT id, order_id, remote_cart_id, email, amount_minor, currency, completed_at
		 FROM completed_orders WHERE order_id = ?`, orderID).
		Scan(&o.ID, &o.OrderID, &o.RemoteCartID, &o.Email, &o.AmountMinor, &o.Currency, &completedAt)
	if err != nil {
		return nil, err
	}
	o.CompletedAt, _ = time.Parse(TimeFormat, completedAt)
	return &o, nil
}
