package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"query-gateway/gateway/domain"

	"github.com/rs/dnscache"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	DefaultBackendTimeout = 10 * time.Second

	// limite para um backend mal configurado não estourar a memória do gateway
	maxResponseBody = 32 << 20
)

// BackendClient chama os serviços de consulta. Uma única tentativa por requisição,
// com timeout total (conexão + resposta) fixo.
type BackendClient struct {
	client   *http.Client
	timeout  time.Duration
	resolver *dnscache.Resolver
	breaker  *gobreaker.CircuitBreaker
	metrics  *Metrics
	logger   *zap.Logger
}

type BackendOption func(*BackendClient)

func WithTimeout(d time.Duration) BackendOption {
	return func(c *BackendClient) { c.timeout = d }
}

// WithResolver liga o cache de DNS no transporte.
func WithResolver(r *dnscache.Resolver) BackendOption {
	return func(c *BackendClient) { c.resolver = r }
}

// WithHTTPClient substitui o client (o timeout continua sendo aplicado).
func WithHTTPClient(hc *http.Client) BackendOption {
	return func(c *BackendClient) { c.client = hc }
}

// WithBreaker abre o circuito após failures falhas de transporte consecutivas e
// rejeita chamadas por openFor. Respostas não-2xx não contam como falha.
func WithBreaker(failures uint32, openFor time.Duration) BackendOption {
	return func(c *BackendClient) {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "query-backend",
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			// só falha de transporte conta; cliente que desistiu não abre o circuito
			IsSuccessful: func(err error) bool {
				if err == nil || errors.Is(err, context.Canceled) {
					return true
				}
				return !errors.Is(err, domain.ErrServiceUnavailable)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("backend circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
}

func WithBackendMetrics(m *Metrics) BackendOption {
	return func(c *BackendClient) { c.metrics = m }
}

func WithBackendLogger(l *zap.Logger) BackendOption {
	return func(c *BackendClient) { c.logger = l }
}

func NewBackendClient(opts ...BackendOption) *BackendClient {
	c := &BackendClient{
		timeout: DefaultBackendTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Transport: NewTransport(c.resolver)}
	} else {
		hc := *c.client
		c.client = &hc
	}
	c.client.Timeout = c.timeout
	// 3xx volta ao chamador como BackendError, nunca é seguido
	c.client.CheckRedirect = noRedirect
	return c
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// NewTransport retorna um *http.Transport com pool de conexões e, opcionalmente,
// resolução de DNS em cache.
func NewTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return t
}

// Call implementa domain.Backend.
func (c *BackendClient) Call(ctx context.Context, url string, payload []byte) (int, []byte, error) {
	if c.breaker == nil {
		return c.do(ctx, url, payload)
	}

	var (
		status int
		body   []byte
	)
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var err error
		status, body, err = c.do(ctx, url, payload)
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Error("backend unavailable", zap.String("url", url), zap.Error(err))
		return 0, nil, domain.Unavailable(err)
	}
	return status, body, err
}

func (c *BackendClient) do(ctx context.Context, url string, payload []byte) (int, []byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, c.unavailable(url, start, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, c.unavailable(url, start, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, c.unavailable(url, start, fmt.Errorf("read response: %w", err))
	}
	c.metrics.observeBackend(url, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("backend error",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return 0, nil, &domain.BackendError{
			Status:      resp.StatusCode,
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
		}
	}
	if len(body) > 0 && !gjson.ValidBytes(body) {
		return 0, nil, c.unavailable(url, start, errors.New("malformed response: body is not JSON"))
	}
	return resp.StatusCode, body, nil
}

func (c *BackendClient) unavailable(url string, start time.Time, err error) error {
	c.metrics.observeBackend(url, 0, time.Since(start))
	c.logger.Error("service unreachable", zap.String("url", url), zap.Error(err))
	return domain.Unavailable(err)
}
