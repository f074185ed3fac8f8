// Package store persists raw EPUB blobs in SQLite.
//
// # Usage
//
//	s := store.New(store.Options{Path: "./lazyreader.db"})
//	if err := s.Open(ctx); err != nil { ... }
//	defer s.Close()
//
//	id, err := s.Put(ctx, "book.epub", data)
//	book, found, err := s.GetByID(ctx, id)
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	// ErrOpen indicates the database could not be opened or migrated.
	ErrOpen = errors.New("store: failed to open database")

	// ErrNotOpen is returned by operations invoked before Open.
	ErrNotOpen = errors.New("store: database not opened")
)

// Book is one stored EPUB. ID is derived from the imported file name.
type Book struct {
	ID       string `gorm:"primaryKey" json:"id"`
	EpubBlob []byte `gorm:"not null" json:"-"`
}

// TableName pins the table name.
func (Book) TableName() string { return "books" }

// HashFileName derives a book id from a file name: the hex SHA-256 of the name.
// Files sharing a name share an id.
func HashFileName(fileName string) string {
	sum := sha256.Sum256([]byte(fileName))
	return hex.EncodeToString(sum[:])
}

// Options configures a Store.
type Options struct {
	Path string
	// Debug enables gorm SQL logging.
	Debug bool
}

// Store is a key-value store of EPUB blobs keyed by id.
type Store struct {
	opts Options

	mu sync.RWMutex
	db *gorm.DB
}

// New creates a store. Call Open before any other operation.
func New(opts Options) *Store {
	return &Store{opts: opts}
}

// Open connects to the database and ensures the books table exists.
// Calling Open on an open store is a no-op.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	logMode := logger.Silent
	if s.opts.Debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(s.opts.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}
	// SQLite allows a single writer; one connection serializes access.
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&Book{}); err != nil {
		sqlDB.Close()
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}

	s.db = db
	return nil
}

// Close closes the database. The store may be opened again afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotOpen
	}
	return s.db.WithContext(ctx), nil
}

// Put stores blob under the id derived from fileName, replacing any record
// already stored under that id. It returns the id.
func (s *Store) Put(ctx context.Context, fileName string, blob []byte) (string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return "", err
	}

	if blob == nil {
		blob = []byte{}
	}
	book := Book{ID: HashFileName(fileName), EpubBlob: blob}

	err = db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&book).Error
	if err != nil {
		return "", fmt.Errorf("store: put %s: %w", book.ID, err)
	}
	return book.ID, nil
}

// GetAll returns every stored book in no particular order.
func (s *Store) GetAll(ctx context.Context) ([]Book, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var books []Book
	if err := db.Find(&books).Error; err != nil {
		return nil, fmt.Errorf("store: get all: %w", err)
	}
	return books, nil
}

// GetByID looks up a book. A missing record is reported through found, not err.
func (s *Store) GetByID(ctx context.Context, id string) (Book, bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return Book{}, false, err
	}

	var book Book
	err = db.Where("id = ?", id).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Book{}, false, nil
	}
	if err != nil {
		return Book{}, false, fmt.Errorf("store: get %s: %w", id, err)
	}
	return book, true, nil
}

// Remove deletes the book with the given id. Removing an absent id succeeds.
func (s *Store) Remove(ctx context.Context, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	if err := db.Where("id = ?", id).Delete(&Book{}).Error; err != nil {
		return fmt.Errorf("store: remove %s: %w", id, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
