package main

import (
	"hash/fnv"
	"os"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/migration"
	"github.com/smallbiznis/atelier/internal/observability"
	"github.com/smallbiznis/atelier/internal/server"
	"github.com/smallbiznis/atelier/pkg/db"
	"github.com/smallbiznis/atelier/pkg/redisconn"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redisconn.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

// registerSnowflake derives the node id from the hostname so replicas do not
// mint colliding ids.
func registerSnowflake() *snowflake.Node {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "atelier"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(hostname))
	node, err := snowflake.NewNode(int64(h.Sum32() % 1024))
	if err != nil {
		panic(err)
	}
	return node
}
