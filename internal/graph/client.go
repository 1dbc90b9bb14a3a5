// Package graph wraps the Bolt driver behind a small client interface so the
// repository can be exercised against an in-memory fake.
package graph

import (
	"context"
	"errors"
	"fmt"
)

// Client defines the minimal contract required by the repository to interact
// with the underlying graph database.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result is a simplified representation of a query response.
type Result struct {
	Records []Record
}

// Single returns the only record of r.
func (r Result) Single() (Record, error) {
	switch len(r.Records) {
	case 0:
		return nil, ErrNoRecords
	case 1:
		return r.Records[0], nil
	default:
		return nil, fmt.Errorf("expected one record, got %d", len(r.Records))
	}
}

// Record groups key-value pairs returned from the graph engine.
type Record map[string]any

// Int64 reads key as an integer. The driver returns int64 for Cypher integers.
func (r Record) Int64(key string) (int64, error) {
	switch v := r[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrMissingKey, key)
	default:
		return 0, fmt.Errorf("key %s: unexpected type %T", key, v)
	}
}

// Float64 reads key as a float.
func (r Record) Float64(key string) (float64, error) {
	switch v := r[key].(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrMissingKey, key)
	default:
		return 0, fmt.Errorf("key %s: unexpected type %T", key, v)
	}
}

// String reads key as a string.
func (r Record) String(key string) (string, error) {
	switch v := r[key].(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("%w: %s", ErrMissingKey, key)
	default:
		return "", fmt.Errorf("key %s: unexpected type %T", key, v)
	}
}

// Options configures a graph client implementation.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

var (
	// ErrMissingURI indicates the graph URI is not provided.
	ErrMissingURI = errors.New("graph URI is required")
	// ErrNoRecords is returned by Result.Single for an empty result.
	ErrNoRecords = errors.New("query returned no records")
	// ErrMissingKey is returned when a record lacks the requested key.
	ErrMissingKey = errors.New("record key missing")
)
