package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "voicedna.sqlite3"
const errDBClientNil = "db client is nil"

// DBClient persists enrollments in SQLite through gorm.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Enrollment is one user's stored voiceprint. ID is assigned on first
// enrollment and kept across re-enrollments, so ordering by ID gives
// insertion order.
type Enrollment struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"type:varchar(255);uniqueIndex:idx_enrollment_user" json:"user_id"`
	Vector    []byte `json:"-"`
	Dim       int    `json:"dim"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("VOICEPRINT_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// writes are serialized by the store; one connection avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Enrollment{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveEnrollment inserts or replaces the vector for userID.
func (c *DBClient) SaveEnrollment(userID string, vector []float64) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	row := Enrollment{UserID: userID, Vector: EncodeVector(vector), Dim: len(vector)}
	err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vector", "dim", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upserting enrollment %q: %w", userID, err)
	}
	return nil
}

// ListEnrollments returns all rows in insertion order.
func (c *DBClient) ListEnrollments() ([]Record, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var rows []Enrollment
	if err := c.DB.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying enrollments: %w", err)
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		vec, err := DecodeVector(r.Vector)
		if err != nil {
			return nil, fmt.Errorf("enrollment %q: %w", r.UserID, err)
		}
		if len(vec) != r.Dim {
			return nil, fmt.Errorf("enrollment %q: stored %d dimensions, header says %d", r.UserID, len(vec), r.Dim)
		}
		out = append(out, Record{UserID: r.UserID, Vector: vec, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

// CountEnrollments returns the number of stored users.
func (c *DBClient) CountEnrollments() (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&Enrollment{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting enrollments: %w", err)
	}
	return int(count), nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating db dir: %w", err)
	}
	return nil
}
