package findologic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/pkg/httpclient"
)

// maxResponseBytes caps how much of a provider answer is read.
const maxResponseBytes = 8 << 20

var providerRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "finsearch_provider_request_duration_seconds",
		Help:    "Duration of search provider requests",
		Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5},
	},
	[]string{"outcome"},
)

// Getter issues GET requests. httpclient.Client and
// httpclient.CircuitBreakerClient both satisfy it.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Client talks to the search provider.
type Client struct {
	http    Getter
	builder *QueryBuilder
	logger  *slog.Logger
}

// NewClient creates a provider client.
func NewClient(getter Getter, builder *QueryBuilder, logger *slog.Logger) *Client {
	return &Client{http: getter, builder: builder, logger: logger}
}

// Search sends criteria to the provider and parses the answer.
//
// Network failures and non-200 answers wrap ErrTransport; unreadable XML wraps
// ErrMalformedResponse.
func (c *Client) Search(ctx context.Context, criteria *domain.SearchCriteria, sc domain.ShopContext) (*domain.ProviderResponse, error) {
	u, err := c.builder.Build(criteria, sc.CustomerGroup, sc.Shop, false)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := c.get(ctx, u)
	if err != nil {
		providerRequestDuration.WithLabelValues("transport_error").Observe(time.Since(start).Seconds())
		return nil, err
	}

	resp, err := Parse(body)
	if err != nil {
		providerRequestDuration.WithLabelValues("malformed").Observe(time.Since(start).Seconds())
		return nil, err
	}
	providerRequestDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	c.logger.DebugContext(ctx, "provider answered",
		slog.Int("total", resp.TotalCount),
		slog.Int("rows", len(resp.ProductIDs)),
		slog.Int("filters", len(resp.Filters)),
		slog.Bool("redirect", resp.HasRedirect()),
	)
	return resp, nil
}

// Alive probes the provider's health endpoint for a shop.
func (c *Client) Alive(ctx context.Context, shop domain.Shop) error {
	_, err := c.get(ctx, c.builder.AliveURL(shop))
	return err
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, httpclient.ParseResponseError(resp, "findologic"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrTransport, err)
	}
	return body, nil
}
