// Package proxy forwards gateway requests to backend services with path
// rewriting and identity propagation.
package proxy

import (
	"fmt"
	"net/http"
	stdproxy "net/http/httputil"
	"net/url"
	"strings"

	"github.com/laundryhub/gateway/internal/errors"
	"github.com/laundryhub/gateway/internal/httputil"
	"github.com/laundryhub/gateway/internal/logging"
)

// Config describes one proxied backend.
type Config struct {
	// Name identifies the backend in logs and error responses,
	// e.g. "Payment Service".
	Name string

	// TargetURL is the backend base URL.
	TargetURL string

	// StripPrefix is the gateway-facing path prefix to rewrite. Empty
	// means the path is forwarded unchanged.
	StripPrefix string

	// RewriteTo replaces StripPrefix on the forwarded path,
	// e.g. "/graphql-payment" -> "/graphql".
	RewriteTo string
}

// Proxy is a path-rewriting reverse proxy for one backend service.
type Proxy struct {
	name    string
	target  *url.URL
	reverse *stdproxy.ReverseProxy
	logger  *logging.Logger
}

// New creates a reverse proxy for the configured backend.
func New(cfg Config, logger *logging.Logger) (*Proxy, error) {
	target, err := url.Parse(cfg.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL for %s: %w", cfg.Name, err)
	}

	p := &Proxy{
		name:   cfg.Name,
		target: target,
		logger: logger,
	}

	p.reverse = &stdproxy.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.Host = target.Host

			if cfg.StripPrefix != "" && strings.HasPrefix(req.URL.Path, cfg.StripPrefix) {
				req.URL.Path = cfg.RewriteTo + strings.TrimPrefix(req.URL.Path, cfg.StripPrefix)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.WithContext(r.Context()).WithError(err).Errorf("%s proxy error", p.name)
			httputil.WriteError(w, errors.UpstreamUnavailable(p.name, err))
		},
	}

	return p, nil
}

// ServeHTTP forwards the request to the backend.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
		"target": p.name,
		"method": r.Method,
		"path":   r.URL.Path,
	}).Debug("proxying request")

	p.reverse.ServeHTTP(w, r)
}
