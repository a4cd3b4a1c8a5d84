package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
)

// GuestStore persists guest carts in the embedded sqlite database, one
// row per guest id holding the full entry list as JSON. The row is
// overwritten wholesale on every mutation; product snapshots are frozen
// at add time and never re-resolved.
type GuestStore struct {
	db *sql.DB
}

func NewGuestStore(dbPath string) (*GuestStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &GuestStore{db: db}, nil
}

func (s *GuestStore) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{
		MigrationsTable: "guest_cart_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *GuestStore) GetCart(ctx context.Context, guestID string) (*domain.Cart, error) {
	query := `SELECT entries, created_at, updated_at FROM guest_carts WHERE guest_id = ?`

	var entriesJSON []byte
	cart := &domain.Cart{UserID: guestID}
	err := s.db.QueryRowContext(ctx, query, guestID).Scan(&entriesJSON, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guest cart: %w", err)
	}

	if err := json.Unmarshal(entriesJSON, &cart.Entries); err != nil {
		return nil, fmt.Errorf("unmarshal guest cart entries: %w", err)
	}

	return cart, nil
}

func (s *GuestStore) AddEntry(ctx context.Context, guestID string, entry domain.CartEntry) error {
	cart, err := s.GetCart(ctx, guestID)
	if errors.Is(err, ErrCartNotFound) {
		cart = &domain.Cart{UserID: guestID, CreatedAt: time.Now()}
	} else if err != nil {
		return err
	}

	entry.AddedAt = time.Now()

	// Merge by product id: adding an already present product replaces its
	// quantity rather than creating a second line.
	if existing := cart.FindEntry(entry.Product.ID); existing != nil {
		existing.Quantity = entry.Quantity
		existing.AddedAt = entry.AddedAt
	} else {
		cart.Entries = append(cart.Entries, entry)
	}

	return s.save(ctx, cart)
}

func (s *GuestStore) UpdateQuantity(ctx context.Context, guestID, productID string, quantity int) error {
	if quantity <= 0 {
		// A non-positive quantity is never stored; the entry goes away.
		return s.RemoveEntry(ctx, guestID, productID)
	}

	cart, err := s.GetCart(ctx, guestID)
	if err != nil {
		return err
	}

	entry := cart.FindEntry(productID)
	if entry == nil {
		return ErrEntryNotFound
	}
	entry.Quantity = quantity

	return s.save(ctx, cart)
}

func (s *GuestStore) RemoveEntry(ctx context.Context, guestID, productID string) error {
	cart, err := s.GetCart(ctx, guestID)
	if err != nil {
		return err
	}

	found := false
	entries := cart.Entries[:0]
	for _, entry := range cart.Entries {
		if entry.Product.ID == productID {
			found = true
			continue
		}
		entries = append(entries, entry)
	}
	if !found {
		return ErrEntryNotFound
	}
	cart.Entries = entries

	return s.save(ctx, cart)
}

func (s *GuestStore) ClearCart(ctx context.Context, guestID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM guest_carts WHERE guest_id = ?`, guestID)
	if err != nil {
		return fmt.Errorf("failed to clear guest cart: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to clear guest cart: %w", err)
	}
	if deleted == 0 {
		return ErrCartNotFound
	}

	return nil
}

// save overwrites the whole row; the entry list is one JSON value.
func (s *GuestStore) save(ctx context.Context, cart *domain.Cart) error {
	entriesJSON, err := json.Marshal(cart.Entries)
	if err != nil {
		return fmt.Errorf("marshal guest cart entries: %w", err)
	}

	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}

	query := `
		INSERT INTO guest_carts (guest_id, entries, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guest_id) DO UPDATE SET entries = excluded.entries, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, cart.UserID, string(entriesJSON), cart.CreatedAt, now); err != nil {
		return fmt.Errorf("failed to upsert guest cart: %w", err)
	}

	return nil
}

func (s *GuestStore) Close() error {
	return s.db.Close()
}
