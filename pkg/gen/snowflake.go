package gen

import (
	"sendpool/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// Module provides the process-wide snowflake node. Every instance sharing a
// database needs its own SNOWFLAKE.NODE.
var Module = fx.Module("snowflake", fx.Provide(NewSnowflakeNode))

func NewSnowflakeNode(cfg *config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.Snowflake.Node)
}
