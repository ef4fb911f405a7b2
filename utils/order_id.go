package utils

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// OrderIDGenerator mints unique ledger order ids of the form BTY-<snowflake>.
type OrderIDGenerator struct {
	node *snowflake.Node
}

func NewOrderIDGenerator(nodeID int64) (*OrderIDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return &OrderIDGenerator{node: node}, nil
}

func (g *OrderIDGenerator) Next() string {
	return "BTY-" + g.node.Generate().String()
}
