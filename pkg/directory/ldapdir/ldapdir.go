// Package ldapdir implements the directory boundary over an LDAP connection
// to a domain controller.
package ldapdir

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/go-ldap/ldap/v3"
	"github.com/karlseguin/ccache/v3"
	"go.uber.org/zap"

	"github.com/aclscan/aclscan/pkg/directory"
	"github.com/aclscan/aclscan/pkg/logger"
)

const (
	defaultSearchTimeout  = 30 * time.Second
	defaultDialMaxElapsed = 30 * time.Second
	defaultQueryCacheTTL  = 1 * time.Minute
	queryCacheSize        = 8192
)

// Option configures the adapter.
type Option func(*Directory)

// WithLogger replaces the default noop logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Directory) {
		d.logger = l
	}
}

// WithBind sets simple-bind credentials. Without it the adapter attempts an
// unauthenticated bind.
func WithBind(user, password string) Option {
	return func(d *Directory) {
		d.bindUser = user
		d.bindPassword = password
	}
}

// WithTLSConfig enables TLS on the connection (ldaps addresses).
func WithTLSConfig(cfg *tls.Config) Option {
	return func(d *Directory) {
		d.tlsConfig = cfg
	}
}

// WithQueryCacheTTL sets how long identical search results are reused.
func WithQueryCacheTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		d.queryTTL = ttl
	}
}

// WithSearchTimeout bounds each LDAP search round trip.
func WithSearchTimeout(timeout time.Duration) Option {
	return func(d *Directory) {
		d.searchTimeout = timeout
	}
}

// Directory talks to a domain controller over LDAP. It keeps one connection,
// redialing with backoff when it breaks, and memoizes identical searches in a
// TTL cache so the expansion stage does not repeat member lookups.
type Directory struct {
	address      string
	baseDN       string
	bindUser     string
	bindPassword string
	tlsConfig    *tls.Config

	searchTimeout time.Duration
	dialMaxWait   time.Duration
	queryTTL      time.Duration

	logger logger.Logger

	mu   sync.Mutex
	conn *ldap.Conn

	queries *ccache.Cache[[]*directory.Entry]
}

var _ directory.Directory = (*Directory)(nil)

// New builds an adapter for the LDAP server at address (ldap:// or ldaps://
// URL) searching under baseDN.
func New(address, baseDN string, opts ...Option) *Directory {
	d := &Directory{
		address:       address,
		baseDN:        baseDN,
		searchTimeout: defaultSearchTimeout,
		dialMaxWait:   defaultDialMaxElapsed,
		queryTTL:      defaultQueryCacheTTL,
		logger:        logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.queries = ccache.New(ccache.Configure[[]*directory.Entry]().MaxSize(queryCacheSize))

	return d
}

// Close releases the connection and the query cache worker.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	d.queries.Stop()
}

func (d *Directory) connect(ctx context.Context) (*ldap.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil && !d.conn.IsClosing() {
		return d.conn, nil
	}

	dialOpts := []ldap.DialOpt{}
	if d.tlsConfig != nil {
		dialOpts = append(dialOpts, ldap.DialWithTLSConfig(d.tlsConfig))
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = d.dialMaxWait

	var conn *ldap.Conn
	err := backoff.Retry(func() error {
		var dialErr error
		conn, dialErr = ldap.DialURL(d.address, dialOpts...)
		if dialErr != nil {
			d.logger.Debug("ldap dial failed, retrying",
				zap.String("address", d.address),
				zap.Error(dialErr),
			)
		}
		return dialErr
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", directory.ErrUnreachable, d.address, err)
	}

	conn.SetTimeout(d.searchTimeout)

	if d.bindUser != "" {
		if err := conn.Bind(d.bindUser, d.bindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bind as %s: %w", d.bindUser, err)
		}
	} else if err := conn.UnauthenticatedBind(""); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unauthenticated bind: %w", err)
	}

	d.conn = conn
	return conn, nil
}

func (d *Directory) dropConn() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

// search runs one LDAP query, serving repeats from the TTL cache.
func (d *Directory) search(ctx context.Context, base string, scope int, filter string, attrs []string) ([]*directory.Entry, error) {
	key := queryKey(base, scope, filter, attrs)
	if item := d.queries.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	req := ldap.NewSearchRequest(
		base,
		scope,
		ldap.NeverDerefAliases,
		0,
		int(d.searchTimeout.Seconds()),
		false,
		filter,
		attrs,
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		d.dropConn()
		return nil, fmt.Errorf("ldap search %q under %q: %w", filter, base, err)
	}

	entries := make([]*directory.Entry, 0, len(res.Entries))
	for _, e := range res.Entries {
		entries = append(entries, toEntry(e))
	}

	d.queries.Set(key, entries, d.queryTTL)
	return entries, nil
}

func queryKey(base string, scope int, filter string, attrs []string) string {
	h := xxhash.New()
	_, _ = h.WriteString(base)
	_, _ = h.WriteString(strconv.Itoa(scope))
	_, _ = h.WriteString(filter)
	for _, a := range attrs {
		_, _ = h.WriteString(a)
	}
	return strconv.FormatUint(h.Sum64(), 10)
}

// binarySIDAttrs are returned by AD as raw bytes and rewritten to the
// S-1-... string form during mapping.
var binarySIDAttrs = []string{"objectSid", "securityIdentifier"}

func toEntry(e *ldap.Entry) *directory.Entry {
	attrs := make(map[string][]string, len(e.Attributes))
	for _, a := range e.Attributes {
		attrs[a.Name] = a.Values
	}
	for _, name := range binarySIDAttrs {
		if raw := e.GetRawAttributeValue(name); len(raw) > 0 {
			if sid, err := DecodeSID(raw); err == nil {
				attrs[name] = []string{sid}
			}
		}
	}

	return &directory.Entry{
		Path:        e.DN,
		SchemaClass: schemaClass(e.GetAttributeValues("objectClass")),
		Attributes:  attrs,
	}
}

// schemaClass picks the most specific objectClass value. AD returns the
// class hierarchy in order, most specific last.
func schemaClass(classes []string) string {
	if len(classes) == 0 {
		return ""
	}
	return classes[len(classes)-1]
}
