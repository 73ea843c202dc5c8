// Package domain contains the competitive process model: a multi-party
// bidding process that, on completion, may generate a proposal for the
// winning party.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusInProgress           Status = "in_progress"
	StatusDiscarded            Status = "discarded"
	StatusCompletedApplication Status = "completed_application"
	StatusCompletedDeclined    Status = "completed_declined"
)

// Completed reports whether the status is a completed terminal state that
// unlock can reopen.
func (s Status) Completed() bool {
	return s == StatusCompletedApplication || s == StatusCompletedDeclined
}

type CompetitiveProcess struct {
	ID                  snowflake.ID   `gorm:"primaryKey" json:"id"`
	LodgementNumber     string         `gorm:"type:text;not null;uniqueIndex:ux_competitive_processes_lodgement" json:"lodgement_number"`
	Status              Status         `gorm:"type:text;not null;index" json:"status"`
	DetailsText         string         `gorm:"type:text" json:"details_text"`
	Geometry            datatypes.JSON `json:"geometry,omitempty"`
	WinnerID            *snowflake.ID  `gorm:"index" json:"winner_id,omitempty"`
	GeneratedProposalID *snowflake.ID  `gorm:"index" json:"generated_proposal_id,omitempty"`
	DocumentsJSON       datatypes.JSON `json:"documents,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CompetitiveProcess) TableName() string { return "competitive_processes" }

// Party is one invited bidder: a person or an organisation, never both.
type Party struct {
	ID                   snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompetitiveProcessID snowflake.ID  `gorm:"not null;index" json:"competitive_process_id"`
	PersonID             *snowflake.ID `gorm:"check:chk_party_one_subject,(person_id IS NULL) <> (org_id IS NULL)" json:"person_id,omitempty"`
	OrgID                *snowflake.ID `json:"org_id,omitempty"`
	InvitedAt            time.Time     `gorm:"not null" json:"invited_at"`
}

// TableName sets the database table name.
func (Party) TableName() string { return "competitive_process_parties" }

// HasOneSubject reports the party invariant: person XOR organisation.
func (p Party) HasOneSubject() bool {
	return (p.PersonID == nil) != (p.OrgID == nil)
}
