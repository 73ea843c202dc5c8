// Package domain contains persistence models for the organisation registry.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organisation mirrors an organisation record from the external ledger
// registry. Name+ABN identify a record; the ledger id links back to the
// authoritative copy.
type Organisation struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	LedgerOrganisationID int64        `gorm:"not null;uniqueIndex:ux_organisations_ledger_id" json:"ledger_organisation_id"`
	Name                 string       `gorm:"type:text;not null;uniqueIndex:ux_organisations_name_abn,priority:1" json:"name"`
	ABN                  string       `gorm:"type:text;not null;uniqueIndex:ux_organisations_name_abn,priority:2" json:"abn"`
	Email                string       `gorm:"type:text" json:"email"`
	Phone                string       `gorm:"type:text" json:"phone"`
	Address              string       `gorm:"type:text" json:"address"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organisation) TableName() string { return "organisations" }

// DelegateRole distinguishes full organisation admins from consultants
// acting on an organisation's behalf.
type DelegateRole string

const (
	DelegateRoleAdmin      DelegateRole = "admin"
	DelegateRoleConsultant DelegateRole = "consultant"
)

// Delegate is a user authorised to act for an organisation.
type Delegate struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrganisationID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_delegates_org_user,priority:1" json:"organisation_id"`
	UserID         int64        `gorm:"not null;index;uniqueIndex:ux_delegates_org_user,priority:2" json:"user_id"`
	Role           DelegateRole `gorm:"type:text;not null" json:"role"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Delegate) TableName() string { return "organisation_delegates" }
