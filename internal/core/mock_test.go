package core

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type MockDriver struct {
	QueryExecuted string
	QueryParams   map[string]interface{}
	Queries       []string
	MockResult    neo4j.EagerResult
	Results       map[string]neo4j.EagerResult
	Err           error
	Errs          map[string]error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.QueryExecuted = query
	m.QueryParams = params
	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	if err, ok := m.Errs[query]; ok {
		return neo4j.EagerResult{}, err
	}
	if res, ok := m.Results[query]; ok {
		return res, nil
	}
	return m.MockResult, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}
