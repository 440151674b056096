package models

import (
	"time"

	"gorm.io/datatypes"
)

// ArtifactBundle enthält alles, was zur Reproduktion eines empirischen
// Scrolls nötig ist. Pro Scroll existiert genau ein Bundle; eine erneute
// Einreichung überschreibt das bestehende.
type ArtifactBundle struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ScrollID        string `json:"scroll_id" gorm:"uniqueIndex;size:16;not null"`
	CodeHash        string `json:"code_hash,omitempty"` // SHA-256 des Code-Archivs
	DataHash        string `json:"data_hash,omitempty"` // SHA-256 der Eingabedaten
	EnvSpec         string `json:"env_spec,omitempty" gorm:"type:text"`
	RunCommands     datatypes.JSONSlice[string] `json:"run_commands"`
	ExpectedMetrics datatypes.JSONMap           `json:"expected_metrics"`
	RandomSeed      *int64 `json:"random_seed,omitempty"`
}

func (ArtifactBundle) TableName() string { return "artifact_bundles" }

// Replication ist ein Reproduktionsversuch gegen ein Bundle. Append-only.
type Replication struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ArtifactBundleID uint   `json:"artifact_bundle_id" gorm:"index;not null"`
	ScrollID         string `json:"scroll_id" gorm:"index;size:16;not null"`
	ReproducerID     uint   `json:"reproducer_id" gorm:"index;not null"`

	Success         bool              `json:"success" gorm:"default:false"`
	ObservedMetrics datatypes.JSONMap `json:"observed_metrics"`
	Logs            string            `json:"logs,omitempty" gorm:"type:text"`
	EnvUsed         string            `json:"env_used,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

func (Replication) TableName() string { return "replications" }
