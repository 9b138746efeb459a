// Package cosmos provides document-store connectivity, the vector distance
// form resolver, and the game/review query repositories.
package cosmos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

// ErrUnreachable indicates the store could not be reached within the bounded
// retry budget. When the store is mandatory this aborts the run before any
// item is processed.
var ErrUnreachable = errors.New("document store unreachable")

// Config holds document store connection and query configuration.
type Config struct {
	ConnectionString string
	Endpoint         string
	Key              string
	Database         string
	GamesContainer   string
	ReviewsContainer string
	VectorField      string
	Metric           string
	FormPreference   string // "", "two" or "three"
}

// Querier is the narrow query surface the resolver and repositories depend
// on. Tests substitute a fake.
type Querier interface {
	Query(ctx context.Context, container, query string, params []azcosmos.QueryParameter) ([][]byte, error)
}

// Client wraps the Cosmos SDK client bound to one database.
type Client struct {
	inner    *azcosmos.Client
	database string
	logger   *slog.Logger
}

// NewClient creates a client from a connection string, or from an
// endpoint/key pair when no connection string is configured.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		inner *azcosmos.Client
		err   error
	)
	switch {
	case cfg.ConnectionString != "":
		inner, err = azcosmos.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.Endpoint != "" && cfg.Key != "":
		var cred azcosmos.KeyCredential
		cred, err = azcosmos.NewKeyCredential(cfg.Key)
		if err == nil {
			inner, err = azcosmos.NewClientWithKey(cfg.Endpoint, cred, nil)
		}
	default:
		return nil, errors.New("document store: no connection string or endpoint/key configured")
	}
	if err != nil {
		return nil, fmt.Errorf("create store client: %w", err)
	}

	return &Client{inner: inner, database: cfg.Database, logger: logger}, nil
}

// Database returns the configured database id.
func (c *Client) Database() string {
	return c.database
}

// Query runs a cross-partition SQL query against a container and returns the
// raw item payloads from every page.
func (c *Client) Query(ctx context.Context, container, query string, params []azcosmos.QueryParameter) ([][]byte, error) {
	cc, err := c.inner.NewContainer(c.database, container)
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", container, err)
	}

	// An empty partition key makes the query cross-partition.
	pager := cc.NewQueryItemsPager(query, azcosmos.NewPartitionKey(), &azcosmos.QueryOptions{
		QueryParameters: params,
	})

	var items [][]byte
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", container, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// Ping verifies the database is reachable, retrying with growing delays.
// Failure after the last attempt wraps ErrUnreachable so callers can treat
// it as the run-fatal precondition.
func (c *Client) Ping(ctx context.Context) error {
	const attempts = 3
	delay := 500 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := c.inner.NewDatabase(c.database)
		if err == nil {
			_, err = db.Read(ctx, nil)
		}
		if err == nil {
			return nil
		}
		lastErr = err
		c.logger.Warn("store ping failed", "attempt", attempt, "error", err)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}
