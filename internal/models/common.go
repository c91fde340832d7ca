// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type Role string

const (
	RoleNone        Role = ""
	RoleProducer    Role = "Producer"
	RoleDistributor Role = "Distributor"
	RoleRetailer    Role = "Retailer"
	RoleConsumer    Role = "Consumer"
)

// Precedence used when a principal satisfies more than one predicate.
var RolePrecedence = []Role{RoleProducer, RoleDistributor, RoleRetailer}

func (r Role) Valid() bool {
	switch r {
	case RoleProducer, RoleDistributor, RoleRetailer, RoleConsumer:
		return true
	}
	return false
}

// Stage is the ordinal lifecycle position of a product instance, mirroring the
// on-chain status enum.
type Stage uint8

const (
	StageManufactured Stage = iota
	StageReadyForPickup
	StagePickedUp
	StageInTransit
	StageReceived
	StageStocked
	StageForSale
	StageSold
)

const StageTerminal = StageSold

func (s Stage) Valid() bool {
	return s <= StageTerminal
}

func (s Stage) Terminal() bool {
	return s == StageTerminal
}

func (s Stage) String() string {
	switch s {
	case StageManufactured:
		return "MANUFACTURED"
	case StageReadyForPickup:
		return "READY_FOR_PICKUP"
	case StagePickedUp:
		return "PICKED_UP"
	case StageInTransit:
		return "IN_TRANSIT"
	case StageReceived:
		return "RECEIVED"
	case StageStocked:
		return "STOCKED"
	case StageForSale:
		return "FOR_SALE"
	case StageSold:
		return "SOLD"
	default:
		return "UNKNOWN"
	}
}

// Role returns the participant responsible for the stage.
func (s Stage) Role() Role {
	switch {
	case s <= StageReadyForPickup:
		return RoleProducer
	case s <= StageInTransit:
		return RoleDistributor
	case s <= StageForSale:
		return RoleRetailer
	case s == StageSold:
		return RoleConsumer
	default:
		return RoleNone
	}
}

// IssuerRole returns the role allowed to record completion of the stage. The
// sale to a consumer is recorded by the retailer.
func (s Stage) IssuerRole() Role {
	if s == StageSold {
		return RoleRetailer
	}
	return s.Role()
}
