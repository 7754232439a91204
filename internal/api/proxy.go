package api

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// NewGatewayProxy returns a handler that forwards requests under prefix to
// the gateway, adding the API key so the dashboard never holds it.
func NewGatewayProxy(upstream, prefix, apiKey string, logger *zap.Logger) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("proxy")
	prefix = "/" + strings.Trim(prefix, "/")

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if apiKey != "" {
				pr.Out.Header.Set("X-Api-Key", apiKey)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("gateway proxy failed", zap.String("path", r.URL.Path), zap.Error(err))
			respondError(w, http.StatusBadGateway, "gateway unreachable")
		},
	}
	return http.StripPrefix(prefix, rp), nil
}
