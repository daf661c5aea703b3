package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/peerloop/relay/internal/clock"
	"github.com/peerloop/relay/internal/config"
	"github.com/peerloop/relay/internal/consumer"
	"github.com/peerloop/relay/internal/dispatch"
	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
	"github.com/peerloop/relay/internal/logger"
	"github.com/peerloop/relay/internal/migration"
	"github.com/peerloop/relay/internal/server"
	"github.com/peerloop/relay/internal/store"
	"github.com/peerloop/relay/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),
		fx.Provide(envelope.NewParser),
		store.Module,
		events.Module,
		dispatch.Module,
		consumer.Module,
		server.Module,
	)
	app.Run()
}
