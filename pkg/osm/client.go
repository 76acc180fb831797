// Package osm fetches administrative boundaries from the Overpass API and
// assembles their member ways into polygon geometries.
package osm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"

	"github.com/terralab/geostat/internal/resilience"
	"github.com/terralab/geostat/internal/vector"
)

// DefaultEndpoint is the public Overpass API interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// boundaryQuery matches an administrative boundary relation by its English
// or local name and recurses into member ways and nodes.
const boundaryQuery = `
[out:json][timeout:180];
(
	relation["boundary"="administrative"]["admin_level"="%d"]["name:en"="%s"];
	relation["boundary"="administrative"]["admin_level"="%d"]["name"="%s"];
);
out body;
>;
out skel qt;
`

// Client queries the Overpass API. Queries retry on transient failures and
// a circuit breaker fails fast when the interpreter is refusing work.
type Client struct {
	client  *overpass.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// New creates a Client against the given endpoint. An empty endpoint uses
// the public interpreter.
func New(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	httpClient := &http.Client{Timeout: timeout}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &Client{
		client: &client,
		retry:  resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("overpass circuit state changed",
					zap.Stringer("from", from), zap.Stringer("to", to))
			},
		}),
	}
}

// query runs one Overpass QL query through the breaker and retry policy.
func (c *Client) query(ctx context.Context, ql string) (overpass.Result, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (overpass.Result, error) {
		if err := c.breaker.Allow(); err != nil {
			return overpass.Result{}, err
		}
		result, err := c.client.Query(ql)
		c.breaker.Record(err)
		return result, err
	})
}

// Boundary fetches the administrative boundary relations matching name at
// the given admin level and returns them as a WGS84 collection, one
// multipolygon feature per relation.
func (c *Client) Boundary(ctx context.Context, name string, level int) (*vector.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "osm: boundary")
	}

	query := fmt.Sprintf(boundaryQuery, level, name, level, name)
	zap.L().Info("querying overpass", zap.String("name", name), zap.Int("admin_level", level))

	result, err := c.query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "osm: query boundary %q", name)
	}

	coll, err := CollectionFromRelations(result.Relations)
	if err != nil {
		return nil, eris.Wrapf(err, "osm: boundary %q", name)
	}
	zap.L().Info("boundary fetched",
		zap.String("name", name),
		zap.Int("relations", coll.Len()))
	return coll, nil
}

// CountryBoundary fetches the national boundary (admin level 2) for the
// named country and returns the first matching feature.
func (c *Client) CountryBoundary(ctx context.Context, name string) (*vector.Feature, error) {
	coll, err := c.Boundary(ctx, name, 2)
	if err != nil {
		return nil, err
	}
	return coll.First()
}
