// File: internal/browser/relay/relay.go

// Package relay runs a loopback forwarding proxy for authenticated upstream
// proxies. Chrome has no flag for upstream proxy credentials, so when the
// configured proxy carries a username/password the session points Chrome at a
// local goproxy instance that injects Proxy-Authorization on the way out.
package relay

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/elazarl/goproxy"
	"go.uber.org/zap"

	"github.com/xkilldash9x/magpie/internal/config"
)

// Relay is a running loopback proxy bound to an ephemeral port.
type Relay struct {
	server *http.Server
	ln     net.Listener
	logger *zap.Logger
}

// Resolve decides how the browser should reach the configured proxy. With no
// proxy configured it returns an empty address. With an unauthenticated proxy
// it returns the upstream address directly and no relay. Only a credentialed
// proxy costs us a running relay.
func Resolve(cfg config.ProxyConfig, logger *zap.Logger) (string, *Relay, error) {
	if cfg.Address == "" {
		return "", nil, nil
	}

	upstream, err := url.Parse(cfg.Address)
	if err != nil {
		return "", nil, fmt.Errorf("invalid proxy address: %w", err)
	}
	// Separately supplied credentials win over ones embedded in the address.
	if cfg.Username != "" {
		upstream.User = url.UserPassword(cfg.Username, cfg.Password)
	}

	if upstream.User == nil {
		return upstream.String(), nil, nil
	}

	r, err := start(upstream, logger)
	if err != nil {
		return "", nil, err
	}
	return r.Addr(), r, nil
}

// start launches the loopback relay forwarding to the authenticated upstream.
func start(upstream *url.URL, logger *zap.Logger) (*Relay, error) {
	proxy := goproxy.NewProxyHttpServer()

	// Plain HTTP requests: the transport injects Proxy-Authorization from the
	// userinfo of the upstream URL.
	proxy.Tr = &http.Transport{Proxy: http.ProxyURL(upstream)}

	// CONNECT tunnels need the header set on the CONNECT request itself.
	password, _ := upstream.User.Password()
	auth := base64.StdEncoding.EncodeToString(
		[]byte(upstream.User.Username() + ":" + password))
	proxy.ConnectDial = proxy.NewConnectDialToProxyWithHandler(
		upstream.String(),
		func(req *http.Request) {
			req.Header.Set("Proxy-Authorization", "Basic "+auth)
		},
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("could not bind relay listener: %w", err)
	}

	r := &Relay{
		server: &http.Server{Handler: proxy},
		ln:     ln,
		logger: logger.Named("proxy_relay"),
	}

	go func() {
		if err := r.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			r.logger.Error("Proxy relay stopped unexpectedly.", zap.Error(err))
		}
	}()

	r.logger.Info("Proxy relay started.",
		zap.String("listen", r.Addr()),
		zap.String("upstream", upstream.Host))
	return r, nil
}

// Addr returns the address Chrome should use as its --proxy-server value.
func (r *Relay) Addr() string {
	return "http://" + r.ln.Addr().String()
}

// Close shuts the relay down. Existing tunnels are dropped.
func (r *Relay) Close() error {
	return r.server.Close()
}
