package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)

	// ExecuteWrite runs work inside one managed write transaction, so a
	// multi-statement mutation (a merge apply) commits or rolls back as a
	// unit.
	ExecuteWrite(ctx context.Context, work func(ctx context.Context, tx neo4j.ManagedTransaction) error) error

	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}
