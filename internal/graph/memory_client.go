package graph

import (
	"context"
	"maps"
	"strings"
	"sync"
)

// Mode distinguishes read and write statements recorded by MemoryClient.
type Mode string

const (
	ModeRead  Mode = "read"
	ModeWrite Mode = "write"
)

// Statement is a cypher query and its parameters as seen by MemoryClient.
type Statement struct {
	Mode   Mode
	Query  string
	Params map[string]any
}

type response struct {
	fragment string
	result   Result
}

// MemoryClient is an in-memory Client that records every statement and answers
// with results registered through Respond. It lets repository code run without
// a graph database.
type MemoryClient struct {
	mu         sync.Mutex
	statements []Statement
	responses  []response
	failures   map[Mode]error
	closed     bool
}

// NewMemoryClient returns an empty client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{failures: make(map[Mode]error)}
}

// Respond registers res for the next statement whose query contains fragment.
// Each registration answers one statement.
func (m *MemoryClient) Respond(fragment string, res Result) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, response{fragment: fragment, result: res})
	return m
}

// Fail makes every statement of the given mode return err. A nil err clears it.
func (m *MemoryClient) Fail(mode Mode, err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, mode)
	} else {
		m.failures[mode] = err
	}
	return m
}

func (m *MemoryClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.execute(ModeWrite, cypher, params)
}

func (m *MemoryClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.execute(ModeRead, cypher, params)
}

func (m *MemoryClient) execute(mode Mode, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[mode]; err != nil {
		return Result{}, err
	}
	m.statements = append(m.statements, Statement{Mode: mode, Query: cypher, Params: maps.Clone(params)})

	for i, r := range m.responses {
		if strings.Contains(cypher, r.fragment) {
			m.responses = append(m.responses[:i], m.responses[i+1:]...)
			return r.result, nil
		}
	}
	return Result{}, nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	return nil
}

func (m *MemoryClient) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemoryClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Statements returns the recorded statements of the given mode in execution order.
func (m *MemoryClient) Statements(mode Mode) []Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Statement
	for _, s := range m.statements {
		if s.Mode == mode {
			out = append(out, s)
		}
	}
	return out
}
