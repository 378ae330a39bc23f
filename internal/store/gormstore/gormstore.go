// Package gormstore backs the store port with PostgreSQL through gorm.
// Collections map to tables; the unique indexes declared on the models are
// the authority for the duplicate-payout and duplicate-contribution guards.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dapoalex/AjoPool/internal/models"
	"github.com/dapoalex/AjoPool/internal/store"
)

// Store implements store.Store on a gorm DB handle.
type Store struct {
	db *gorm.DB
}

// Open connects to PostgreSQL, configures the pool, and migrates the schema.
func Open(dsn string, maxIdleConns, maxOpenConns int) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.Contribution{},
		&models.Payout{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing gorm handle, for tests that bring their own DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// BuildDSN builds a PostgreSQL DSN.
func BuildDSN(host, port, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
}

func (s *Store) Get(ctx context.Context, collection, id string, dest any) error {
	err := s.db.WithContext(ctx).Table(collection).Where("id = ?", id).Take(dest).Error
	return translate(err)
}

func (s *Store) Query(ctx context.Context, collection string, filters []store.Filter, opts store.Options, dest any) error {
	tx := s.db.WithContext(ctx).Table(collection)
	for _, f := range filters {
		switch f.Op {
		case store.OpEqual:
			tx = tx.Where(fmt.Sprintf("%s = ?", f.Field), f.Value)
		case store.OpGreaterOrEqual:
			tx = tx.Where(fmt.Sprintf("%s >= ?", f.Field), f.Value)
		case store.OpLessOrEqual:
			tx = tx.Where(fmt.Sprintf("%s <= ?", f.Field), f.Value)
		case store.OpLess:
			tx = tx.Where(fmt.Sprintf("%s < ?", f.Field), f.Value)
		case store.OpContains:
			tx = tx.Where(fmt.Sprintf("%s LIKE ?", f.Field), fmt.Sprintf("%%%v%%", f.Value))
		default:
			return fmt.Errorf("gormstore: unsupported filter op %q", f.Op)
		}
	}
	if opts.OrderBy != "" {
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("%s %s", opts.OrderBy, dir))
	}
	if opts.Limit > 0 {
		tx = tx.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		tx = tx.Offset(opts.Offset)
	}
	return translate(tx.Find(dest).Error)
}

func (s *Store) Create(ctx context.Context, collection string, doc any) (string, error) {
	id, err := ensureID(doc)
	if err != nil {
		return "", err
	}
	if err := translate(s.db.WithContext(ctx).Table(collection).Create(doc).Error); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any, preconds ...store.Precondition) error {
	return s.applyUpdate(ctx, s.db, collection, id, patch, preconds)
}

func (s *Store) BatchWrite(ctx context.Context, ops []store.WriteOp) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if op.Create != nil {
				if _, err := ensureID(op.Create); err != nil {
					return err
				}
				if err := translate(tx.Table(op.Collection).Create(op.Create).Error); err != nil {
					return err
				}
				continue
			}
			if err := s.applyUpdate(ctx, tx, op.Collection, op.ID, op.Patch, op.Preconds); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) applyUpdate(ctx context.Context, db *gorm.DB, collection, id string, patch map[string]any, preconds []store.Precondition) error {
	tx := db.WithContext(ctx).Table(collection).Where("id = ?", id)
	for _, pre := range preconds {
		tx = tx.Where(fmt.Sprintf("%s = ?", pre.Field), pre.Equals)
	}
	res := tx.Updates(patch)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing document from a lost compare-and-swap.
		var count int64
		if err := db.WithContext(ctx).Table(collection).Where("id = ?", id).Count(&count).Error; err != nil {
			return translate(err)
		}
		if count == 0 {
			return store.ErrNotFound
		}
		return store.ErrPreconditionFailed
	}
	return nil
}

// ensureID assigns a UUID to an empty ID field and returns the ID.
func ensureID(doc any) (string, error) {
	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", fmt.Errorf("gormstore: document must be a struct pointer")
	}
	f := v.FieldByName("ID")
	if !f.IsValid() || f.Kind() != reflect.String {
		return "", fmt.Errorf("gormstore: document has no string ID field")
	}
	if f.String() == "" {
		f.SetString(uuid.NewString())
	}
	return f.String(), nil
}

// translate maps gorm errors onto the store port's error kinds.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &store.UnavailableError{Transient: true, Err: err}
	case isConnectionError(err):
		return &store.UnavailableError{Transient: true, Err: err}
	default:
		return &store.UnavailableError{Transient: false, Err: err}
	}
}

func isConnectionError(err error) bool {
	msg := err.Error()
	for _, probe := range []string{"connection refused", "connection reset", "broken pipe", "i/o timeout", "too many connections"} {
		if strings.Contains(msg, probe) {
			return true
		}
	}
	return false
}
