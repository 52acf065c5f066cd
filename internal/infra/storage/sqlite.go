// Package storage persists module runtimes, deal records and module
// settings in SQLite through gorm. It implements module.Repository.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"quant_go/internal/domain"
	"quant_go/internal/module"
)

// Storage is the SQLite-backed repository.
type Storage struct {
	db *gorm.DB
}

// RuntimeRow stores the latest runtime snapshot per module, serialized
// as JSON. Snapshots are whole-document upserts, so one row per module.
type RuntimeRow struct {
	ModuleName string `gorm:"primaryKey"`
	Body       string
	UpdatedAt  time.Time
}

// DealRow stores one closed round trip.
type DealRow struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ModuleName string `gorm:"index"`
	Symbol     string
	Direction  string
	Volume     int
	OpenPrice  float64
	ClosePrice float64
	Profit     float64
	OpenDate   string
	CloseDate  string
	CreatedAt  time.Time
}

// SettingsRow stores module configuration key/values.
type SettingsRow struct {
	ModuleName string `gorm:"primaryKey"`
	Body       string
	UpdatedAt  time.Time
}

// NewStorage opens (or creates) the SQLite database at path.
func NewStorage(path string) (*Storage, error) {
	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&RuntimeRow{}, &DealRow{}, &SettingsRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// SaveRuntime upserts the latest runtime snapshot for a module.
func (s *Storage) SaveRuntime(rt module.RuntimeDescription) error {
	body, err := json.Marshal(rt)
	if err != nil {
		return fmt.Errorf("failed to encode runtime: %w", err)
	}
	row := RuntimeRow{
		ModuleName: rt.ModuleName,
		Body:       string(body),
		UpdatedAt:  time.Now(),
	}
	return s.db.Save(&row).Error
}

// FindRuntime loads the latest runtime snapshot, or nil when absent.
func (s *Storage) FindRuntime(moduleName string) (*module.RuntimeDescription, error) {
	var row RuntimeRow
	err := s.db.First(&row, "module_name = ?", moduleName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	var rt module.RuntimeDescription
	if err := json.Unmarshal([]byte(row.Body), &rt); err != nil {
		return nil, fmt.Errorf("failed to decode runtime: %w", err)
	}
	return &rt, nil
}

// SaveDeal appends one closed round trip.
func (s *Storage) SaveDeal(deal module.DealRecord) error {
	row := DealRow{
		ModuleName: deal.ModuleName,
		Symbol:     deal.Symbol,
		Direction:  string(deal.Direction),
		Volume:     deal.Volume,
		OpenPrice:  deal.OpenPrice,
		ClosePrice: deal.ClosePrice,
		Profit:     deal.Profit,
		OpenDate:   deal.OpenDate,
		CloseDate:  deal.CloseDate,
		CreatedAt:  time.Now(),
	}
	return s.db.Create(&row).Error
}

// FindAllDeals returns a module's deal history in insertion order.
func (s *Storage) FindAllDeals(moduleName string) ([]module.DealRecord, error) {
	var rows []DealRow
	if err := s.db.Order("id").Find(&rows, "module_name = ?", moduleName).Error; err != nil {
		return nil, err
	}
	deals := make([]module.DealRecord, 0, len(rows))
	for _, row := range rows {
		deals = append(deals, module.DealRecord{
			ModuleName: row.ModuleName,
			Symbol:     row.Symbol,
			Direction:  domain.Direction(row.Direction),
			Volume:     row.Volume,
			OpenPrice:  row.OpenPrice,
			ClosePrice: row.ClosePrice,
			Profit:     row.Profit,
			OpenDate:   row.OpenDate,
			CloseDate:  row.CloseDate,
		})
	}
	return deals, nil
}

// SaveSettings upserts a module's configuration document.
func (s *Storage) SaveSettings(moduleName string, settings any) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	row := SettingsRow{
		ModuleName: moduleName,
		Body:       string(body),
		UpdatedAt:  time.Now(),
	}
	return s.db.Save(&row).Error
}

// LoadSettings decodes a module's configuration document into out,
// reporting whether one existed.
func (s *Storage) LoadSettings(moduleName string, out any) (bool, error) {
	var row SettingsRow
	err := s.db.First(&row, "module_name = ?", moduleName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(row.Body), out); err != nil {
		return false, fmt.Errorf("failed to decode settings: %w", err)
	}
	return true, nil
}
