package memory

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type executedQuery struct {
	Query  string
	Params map[string]any
}

// MockDriver records every executed query and serves canned results keyed by
// the exact query text. Unknown queries return an empty result.
type MockDriver struct {
	Calls   []executedQuery
	Results map[string]neo4j.EagerResult
	Errs    map[string]error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	m.Calls = append(m.Calls, executedQuery{Query: query, Params: params})
	if err, ok := m.Errs[query]; ok {
		return neo4j.EagerResult{}, err
	}
	if res, ok := m.Results[query]; ok {
		return res, nil
	}
	return neo4j.EagerResult{}, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *MockDriver) Close(ctx context.Context) error { return nil }

func (m *MockDriver) lastCall() executedQuery {
	return m.Calls[len(m.Calls)-1]
}

func record(keys []string, values []any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func singleResult(keys []string, values []any) neo4j.EagerResult {
	return neo4j.EagerResult{Records: []*neo4j.Record{record(keys, values)}}
}
