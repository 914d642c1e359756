package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/finsearch/pkg/logger"
)

// ShopKeyHeader carries the Findologic shop key of a storefront request.
const ShopKeyHeader = "X-Shop-Key"

// RequestLogger builds a request-scoped logger enriched with correlation_id,
// shop_key, trace_id and span_id and stores it in the context. Mount it after
// RequestLogging and Tracing.
//
// The shop key is taken from the X-Shop-Key header, or from the shopkey query
// parameter used by the export feed.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			shopKey := r.Header.Get(ShopKeyHeader)
			if shopKey == "" {
				shopKey = r.URL.Query().Get("shopkey")
			}
			if shopKey != "" {
				ctx = logger.WithShopKey(ctx, shopKey)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
