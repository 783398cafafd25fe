package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"storefront/internal/models"
	"storefront/internal/shop"
)

// Paths locates the flat files of the Record Store.
type Paths struct {
	Users    string
	Products string
	History  string
}

// Store is the flat-file Record Store: every collection is a JSON array rewritten as a whole.
type Store struct {
	paths Paths
}

// NewStore creates a record store over the given files
func NewStore(paths Paths) *Store {
	return &Store{paths: paths}
}

// Paths returns the files backing the store
func (s *Store) Paths() Paths {
	return s.paths
}

// EnsureLayout creates missing parent directories and seeds missing files with an empty array
func (s *Store) EnsureLayout() error {
	for _, path := range []string{s.paths.Users, s.paths.Products, s.paths.History} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("%w: failed to create directory for %s: %w", shop.ErrIO, path, err)
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := writeFile(path, []byte("[]")); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadUsers reads the users file. A corrupt file yields an empty list and an ErrDecode warning.
func (s *Store) LoadUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.load(ctx, s.paths.Users, &users)
	if err != nil {
		return []models.User{}, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// SaveUsers overwrites the users file
func (s *Store) SaveUsers(ctx context.Context, users []models.User) error {
	return s.save(ctx, s.paths.Users, users)
}

// LoadProducts reads the products file. A corrupt file yields an empty list and an ErrDecode warning.
func (s *Store) LoadProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.load(ctx, s.paths.Products, &products)
	if err != nil {
		return []models.Product{}, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// SaveProducts overwrites the products file
func (s *Store) SaveProducts(ctx context.Context, products []models.Product) error {
	return s.save(ctx, s.paths.Products, products)
}

// LoadHistory decodes the purchase history row by row. Rows whose total or date
// cannot be coerced are skipped and counted in dropped.
func (s *Store) LoadHistory(ctx context.Context) (records []models.PurchaseRecord, dropped int, err error) {
	rows, err := s.historyRows(ctx)
	if err != nil {
		return []models.PurchaseRecord{}, 0, err
	}

	records = make([]models.PurchaseRecord, 0, len(rows))
	for _, row := range rows {
		var rec models.PurchaseRecord
		if err := json.Unmarshal(row, &rec); err != nil {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped, nil
}

// AppendPurchase adds a record to the history, keeping every existing row verbatim.
// A corrupt history is replaced (after being copied aside) and reported as ErrDecode
// together with a successful append.
func (s *Store) AppendPurchase(ctx context.Context, rec models.PurchaseRecord) (warning error, err error) {
	rows, loadErr := s.historyRows(ctx)
	if loadErr != nil {
		if !errors.Is(loadErr, shop.ErrDecode) {
			return nil, loadErr
		}
		warning = loadErr
		rows = nil
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return warning, fmt.Errorf("failed to encode purchase: %w", err)
	}
	rows = append(rows, raw)

	return warning, s.save(ctx, s.paths.History, rows)
}

func (s *Store) historyRows(ctx context.Context) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if err := s.load(ctx, s.paths.History, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// load decodes path into out. A missing file leaves out untouched.
func (s *Store) load(ctx context.Context, path string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %w", shop.ErrIO, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		backup := path + ".corrupt"
		if werr := writeFile(backup, data); werr != nil {
			return fmt.Errorf("%w: %s (backup failed: %v): %w", shop.ErrDecode, path, werr, err)
		}
		return fmt.Errorf("%w: %s copied to %s: %w", shop.ErrDecode, path, backup, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, path string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return writeFile(path, data)
}

// writeFile replaces path through a temp file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", shop.ErrIO, path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write %s: %w", shop.ErrIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", shop.ErrIO, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: failed to replace %s: %w", shop.ErrIO, path, err)
	}
	return nil
}
