package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	"github.com/smallbiznis/ledgerlink/internal/config"
	"github.com/smallbiznis/ledgerlink/internal/migration"
	"github.com/smallbiznis/ledgerlink/internal/observability"
	"github.com/smallbiznis/ledgerlink/internal/server"
	"github.com/smallbiznis/ledgerlink/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
		migration.Module,
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
