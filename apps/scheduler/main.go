// Command scheduler runs only the background jobs: compliance rollover
// and the reminder sweeps. Pair it with apps/api and a shared redis so
// multiple instances never double-run a job.
package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/crownlands/tenure/internal/approval"
	"github.com/crownlands/tenure/internal/audit"
	"github.com/crownlands/tenure/internal/clock"
	"github.com/crownlands/tenure/internal/compliance"
	"github.com/crownlands/tenure/internal/config"
	"github.com/crownlands/tenure/internal/identity"
	"github.com/crownlands/tenure/internal/invoicing"
	"github.com/crownlands/tenure/internal/observability"
	"github.com/crownlands/tenure/internal/organization"
	"github.com/crownlands/tenure/internal/providers/email"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"github.com/crownlands/tenure/internal/scheduler"
	"github.com/crownlands/tenure/internal/sequence"
	"github.com/crownlands/tenure/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		sequence.Module,

		audit.Module,
		ledger.Module,
		identity.Module,
		email.Module,

		organization.Module,
		approval.Module,
		compliance.Module,
		invoicing.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
