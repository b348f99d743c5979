package registry

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when a connection or dataset id does not resolve.
var ErrNotFound = errors.New("record not found")

// Store is the gorm-backed registry of connections and datasets.
type Store struct {
	db *gorm.DB
}

// Open connects to the registry database and migrates the schema. Supported
// drivers are "sqlite" (default) and "postgres".
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to registry database: %w", err)
	}

	if err := db.AutoMigrate(&Connection{}, &Dataset{}); err != nil {
		return nil, fmt.Errorf("failed to migrate registry schema: %w", err)
	}
	log.Println("Registry schema migration completed")
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- Connection methods ---

// CreateConnection persists a new connection and fills in its id.
func (s *Store) CreateConnection(conn *Connection) error {
	return s.db.Create(conn).Error
}

// GetConnection retrieves a connection by id.
func (s *Store) GetConnection(id uint) (Connection, error) {
	var conn Connection
	if err := s.db.First(&conn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Connection{}, fmt.Errorf("connection %d: %w", id, ErrNotFound)
		}
		return Connection{}, err
	}
	return conn, nil
}

// ListConnections retrieves all connections, newest first.
func (s *Store) ListConnections() ([]Connection, error) {
	var conns []Connection
	if err := s.db.Order("created_at DESC").Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// UpdateConnection persists changes to an existing connection.
func (s *Store) UpdateConnection(conn *Connection) error {
	return s.db.Save(conn).Error
}

// DeleteConnection removes a connection and its datasets.
func (s *Store) DeleteConnection(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&Connection{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("connection %d: %w", id, ErrNotFound)
		}
		return tx.Where("connection_id = ?", id).Delete(&Dataset{}).Error
	})
}

// --- Dataset methods ---

// CreateDataset persists a new dataset after checking its connection exists.
func (s *Store) CreateDataset(ds *Dataset) error {
	if _, err := s.GetConnection(ds.ConnectionID); err != nil {
		return err
	}
	return s.db.Create(ds).Error
}

// GetDataset retrieves a dataset by id.
func (s *Store) GetDataset(id uint) (Dataset, error) {
	var ds Dataset
	if err := s.db.First(&ds, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Dataset{}, fmt.Errorf("dataset %d: %w", id, ErrNotFound)
		}
		return Dataset{}, err
	}
	return ds, nil
}

// ListDatasets retrieves all datasets, optionally filtered by connection.
func (s *Store) ListDatasets(connectionID uint) ([]Dataset, error) {
	query := s.db.Order("created_at DESC")
	if connectionID != 0 {
		query = query.Where("connection_id = ?", connectionID)
	}
	var datasets []Dataset
	if err := query.Find(&datasets).Error; err != nil {
		return nil, err
	}
	return datasets, nil
}

// UpdateDataset persists changes to an existing dataset.
func (s *Store) UpdateDataset(ds *Dataset) error {
	return s.db.Save(ds).Error
}

// DeleteDataset removes a dataset.
func (s *Store) DeleteDataset(id uint) error {
	result := s.db.Delete(&Dataset{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("dataset %d: %w", id, ErrNotFound)
	}
	return nil
}
