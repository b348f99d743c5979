// Package registry persists connection and dataset records and serves their
// CRUD API.
package registry

import (
	"encoding/json"
	"time"
)

// Connection is a stored descriptor of an external or inline data source.
// Config is the type-dependent bag the connector package decodes.
type Connection struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	Name      string          `json:"name" gorm:"type:varchar(255);not null"`
	Type      string          `json:"type" gorm:"type:varchar(32);not null"`
	Config    json.RawMessage `json:"config" gorm:"type:text"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
	Datasets  []Dataset       `json:"-" gorm:"foreignKey:ConnectionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Dataset is a named query or table reference bound to one connection. When
// Query is set it is the authoritative SQL; otherwise Table names the
// relation to scan.
type Dataset struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ConnectionID uint      `json:"connection_id" gorm:"not null;index"`
	Name         string    `json:"name" gorm:"type:varchar(255);not null"`
	Query        string    `json:"query,omitempty" gorm:"type:text"`
	Table        string    `json:"table,omitempty" gorm:"column:table_ref;type:varchar(255)"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// CreateConnectionRequest defines the payload for creating a connection.
type CreateConnectionRequest struct {
	Name   string          `json:"name" binding:"required,min=1,max=255"`
	Type   string          `json:"type" binding:"required,oneof=csv rest sql"`
	Config json.RawMessage `json:"config" binding:"required"`
}

// UpdateConnectionRequest defines the payload for updating a connection.
// Pointer fields distinguish "unset" from zero values.
type UpdateConnectionRequest struct {
	Name   *string         `json:"name,omitempty" binding:"omitempty,min=1,max=255"`
	Type   *string         `json:"type,omitempty" binding:"omitempty,oneof=csv rest sql"`
	Config json.RawMessage `json:"config,omitempty"`
}

// CreateDatasetRequest defines the payload for creating a dataset.
type CreateDatasetRequest struct {
	ConnectionID uint   `json:"connection_id" binding:"required"`
	Name         string `json:"name" binding:"required,min=1,max=255"`
	Query        string `json:"query,omitempty"`
	Table        string `json:"table,omitempty"`
}

// UpdateDatasetRequest defines the payload for updating a dataset.
type UpdateDatasetRequest struct {
	Name  *string `json:"name,omitempty" binding:"omitempty,min=1,max=255"`
	Query *string `json:"query,omitempty"`
	Table *string `json:"table,omitempty"`
}
