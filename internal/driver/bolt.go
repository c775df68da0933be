package driver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// BoltDriver talks to any Bolt-speaking graph database (Memgraph, Neo4j,
// FalkorDB's Bolt endpoint) through the neo4j driver.
type BoltDriver struct {
	Driver neo4j.DriverWithContext
}

func NewBoltDriver(ctx context.Context, uri, username, password string) (*BoltDriver, error) {
	d, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := d.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify graph connectivity: %w", err)
	}
	slog.Info("connected to graph database", "uri", uri)
	return &BoltDriver{Driver: d}, nil
}

func (d *BoltDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *BoltDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("execute query: %w", err)
	}
	return *result, nil
}

func (d *BoltDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Message(uid);",
		"CREATE INDEX ON :Chat(chat_id);",
		"CREATE INDEX ON :User(user_id);",
		"CREATE INDEX ON :Agent(user_id);",
		"CREATE INDEX ON :Day(date);",
		"CREATE INDEX ON :Entity(name);",
		"CREATE INDEX ON :Snapshot(id);",
		"CREATE INDEX ON :SystemEvent(id);",
		"CREATE INDEX ON :Role(name);",
	}

	for _, q := range queries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			// Index may already exist; not fatal.
			slog.Warn("failed to create index", "query", q, "error", err)
		}
	}
	return nil
}
