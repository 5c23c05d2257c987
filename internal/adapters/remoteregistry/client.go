package remoteregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/mbean"
	httpinst "github.com/fllarpy/mbean-bridge/instrumentation/http"
	"github.com/fllarpy/mbean-bridge/internal/adapters/apmhttp"
)

// maxBody bounds every response read from a remote registry.
const maxBody = 32 << 20

// ErrInvalidTarget is returned for targets that are not host:port.
var ErrInvalidTarget = errors.New("invalid target")

// Connector dials remote registries.
type Connector struct {
	store       domain.StoreWriter
	dialTimeout time.Duration
	scheme      string
}

var _ domain.Connector = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithStore records every registry call in store.
func WithStore(store domain.StoreWriter) Option {
	return func(c *Connector) { c.store = store }
}

// WithDialTimeout bounds establishing the TCP connection. The request
// context still bounds the whole exchange.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Connector) { c.dialTimeout = d }
}

// NewConnector returns a Connector.
func NewConnector(opts ...Option) *Connector {
	c := &Connector{dialTimeout: 5 * time.Second, scheme: "http"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseTarget validates a host:port target.
func ParseTarget(target string) (host, port string, err error) {
	host, port, err = net.SplitHostPort(target)
	if err != nil {
		return "", "", fmt.Errorf("%w %q: %v", ErrInvalidTarget, target, err)
	}
	if host == "" {
		return "", "", fmt.Errorf("%w %q: missing host", ErrInvalidTarget, target)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", "", fmt.Errorf("%w %q: bad port %q", ErrInvalidTarget, target, port)
	}
	return host, port, nil
}

// Connect dials target and fetches its object catalogue. Every failure wraps
// domain.ErrConnection.
func (c *Connector) Connect(ctx context.Context, target string) (domain.Connection, error) {
	if _, _, err := ParseTarget(target); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: c.dialTimeout}).DialContext,
		MaxIdleConnsPerHost: 1,
	}
	conn := &Conn{
		base: &url.URL{Scheme: c.scheme, Host: target},
		client: &http.Client{
			Transport: apmhttp.NewAPMTransport(httpinst.NewTransport(transport), c.store),
		},
		transport: transport,
	}

	var objects []mbean.ManagedObject
	if err := conn.get(ctx, mbean.ObjectsPath, nil, &objects); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrConnection, target, err)
	}
	conn.objects = objects
	return conn, nil
}

// Conn is one connection to a remote registry. The object catalogue is
// fetched once when the connection opens; attribute values are read on
// demand. A Conn is used by a single request.
type Conn struct {
	base      *url.URL
	client    *http.Client
	transport *http.Transport
	objects   []mbean.ManagedObject
}

// ListObjects returns the catalogue fetched by Connect.
func (c *Conn) ListObjects(ctx context.Context) ([]mbean.ObjectName, error) {
	names := make([]mbean.ObjectName, len(c.objects))
	for i, o := range c.objects {
		names[i] = o.Name
	}
	return names, nil
}

// ListAttributes returns the descriptors fetched by Connect.
func (c *Conn) ListAttributes(ctx context.Context, object mbean.ObjectName) ([]mbean.AttributeDescriptor, error) {
	for _, o := range c.objects {
		if o.Name.Equal(object) {
			return o.Attributes, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", mbean.ErrNotFound, object)
}

// ReadAttribute fetches one attribute value.
func (c *Conn) ReadAttribute(ctx context.Context, object mbean.ObjectName, attribute string) (mbean.Value, error) {
	var reading mbean.AttributeReading
	q := url.Values{"object": {object.String()}, "name": {attribute}}
	if err := c.get(ctx, mbean.AttributePath, q, &reading); err != nil {
		return mbean.Value{}, err
	}
	return reading.Value, nil
}

// Close releases the connection's pooled sockets.
func (c *Conn) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// statusError is a protocol-level failure reported by the remote registry.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("registry answered %d: %s", e.status, e.message)
}

func (e *statusError) Is(target error) bool {
	return target == mbean.ErrNotFound && e.status == http.StatusNotFound
}

func (c *Conn) get(ctx context.Context, path string, q url.Values, out any) error {
	u := *c.base
	u.Path = path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Transport failures mean the registry is gone, not one bad attribute.
		return fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBody)
	if resp.StatusCode != http.StatusOK {
		var perr mbean.ProtocolError
		if err := json.NewDecoder(body).Decode(&perr); err != nil || perr.Error == "" {
			perr.Error = http.StatusText(resp.StatusCode)
		}
		return &statusError{status: resp.StatusCode, message: perr.Error}
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
