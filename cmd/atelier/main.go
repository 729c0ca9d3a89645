package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/auth"
	"github.com/smallbiznis/atelier/internal/boutique"
	"github.com/smallbiznis/atelier/internal/cache"
	"github.com/smallbiznis/atelier/internal/catalog"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/inbox"
	"github.com/smallbiznis/atelier/internal/migration"
	"github.com/smallbiznis/atelier/internal/notification"
	"github.com/smallbiznis/atelier/internal/observability"
	"github.com/smallbiznis/atelier/internal/order"
	"github.com/smallbiznis/atelier/internal/outbox"
	"github.com/smallbiznis/atelier/internal/payment"
	"github.com/smallbiznis/atelier/internal/providers/alert"
	"github.com/smallbiznis/atelier/internal/providers/cloud"
	"github.com/smallbiznis/atelier/internal/providers/email"
	"github.com/smallbiznis/atelier/internal/providers/pdf"
	"github.com/smallbiznis/atelier/internal/ratelimit"
	"github.com/smallbiznis/atelier/internal/scheduler"
	"github.com/smallbiznis/atelier/internal/seed"
	"github.com/smallbiznis/atelier/internal/server"
	"github.com/smallbiznis/atelier/internal/settings"
	"github.com/smallbiznis/atelier/internal/storage"
	"github.com/smallbiznis/atelier/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		seed.Module,
		cache.Module,
		ratelimit.Module,

		// Providers
		cloud.Module,
		storage.Module,
		email.Module,
		alert.Module,
		pdf.Module,
		notification.Module,

		// Functional Domains
		outbox.Module,
		settings.Module,
		catalog.Module,
		order.Module,
		inbox.Module,
		boutique.Module,
		payment.Module,
		auth.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
