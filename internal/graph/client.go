// Package graph queries the precedent knowledge graph backing statute
// resolution and exemplar lookup.
//
// The graph links each Case node to its pleading structure through
// Chinese-labelled relationships:
//
//	(Case)-[:包含]->(Facts)-[:適用]->(Laws)-[:計算]->(Compensation)-[:推導]->(Conclusion)
//
// with LawDetail, CompensationDetail and ConclusionDetail leaves hanging off
// the section nodes. All queries here are read-only; graph ingestion happens
// in a separate ETL.
package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
)

// Client wraps the Neo4j driver. A nil Client is valid and answers every
// query with empty results, so callers can run without a graph configured.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	log      *logger.Logger
}

// New connects to the knowledge graph and verifies connectivity. An empty
// URI disables graph lookups and returns a nil client.
func New(cfg model.GraphConfig, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, nil
	}
	if log == nil {
		log = logger.NewNop()
	}

	username := cfg.Username
	if username == "" {
		username = "neo4j"
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxPool := cfg.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 50
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(username, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graph: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}

	return &Client{
		driver:   driver,
		database: cfg.Database,
		timeout:  timeout,
		log:      log.With("component", "graph"),
	}, nil
}

// IsAvailable reports whether the graph answers a connectivity probe.
func (c *Client) IsAvailable(ctx context.Context) bool {
	if c == nil || c.driver == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.driver.VerifyConnectivity(ctx) == nil
}

// Close releases the driver's connection pool.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

func (c *Client) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) readSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.database,
	})
}
