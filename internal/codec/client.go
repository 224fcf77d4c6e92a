package codec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrUnknownCitation is returned when the remote generator cites something outside the
// retrieved articles.
var ErrUnknownCitation = errors.New("citation not in retrieved articles")

// #region client-struct

// Client is a compose.Generator backed by a remote Generator service.
type Client struct {
	conn    *grpc.ClientConn
	cc      grpc.ClientConnInterface
	timeout time.Duration
	retry   RetryPolicy
	cache   *cache.Cache
	log     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each attempt. Zero means only the caller's deadline applies.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithRetry replaces DefaultRetryPolicy.
func WithRetry(p RetryPolicy) ClientOption {
	return func(c *Client) { c.retry = p }
}

// WithCacheTTL sets how long identical requests are answered from memory. Zero disables caching.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// #endregion client-struct

// #region constructor

// NewClient connects to a Generator service at addr.
func NewClient(addr string, opts ...ClientOption) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	c := NewClientWithConn(conn, opts...)
	c.conn = conn
	return c, nil
}

// NewClientWithConn builds a Client over an existing connection, which the caller keeps
// ownership of.
func NewClientWithConn(cc grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{
		cc:      cc,
		timeout: 5 * time.Second,
		retry:   DefaultRetryPolicy(),
		cache:   cache.New(10*time.Minute, 20*time.Minute),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close shuts down a connection opened by NewClient.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region generate

// Generate sends the query and the retrieved article IDs to the remote service and maps the
// cited IDs back onto the retrieved articles' citations.
func (c *Client) Generate(ctx context.Context, query string, retrieved []corpus.KnowledgeArticle) (compose.ComposedResponse, error) {
	ids := make([]string, len(retrieved))
	for i, a := range retrieved {
		ids[i] = a.ID
	}

	key := cacheKey(query, ids)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			c.log.Debug("generate cache hit", zap.Strings("article_ids", ids))
			return cloneResponse(v.(compose.ComposedResponse)), nil
		}
	}

	req, err := encodeRequest(query, ids)
	if err != nil {
		return compose.ComposedResponse{}, fmt.Errorf("encode request: %w", err)
	}

	var out *structpb.Struct
	err = c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			c.log.Warn("retrying generate", zap.Int("attempt", attempt+1))
		}
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		out = new(structpb.Struct)
		return c.cc.Invoke(ctx, generateMethod, req, out)
	})
	if err != nil {
		return compose.ComposedResponse{}, fmt.Errorf("generate rpc: %w", err)
	}

	answer, confidence, citationIDs, err := decodeResponse(out)
	if err != nil {
		return compose.ComposedResponse{}, fmt.Errorf("decode response: %w", err)
	}

	owned := make(map[string]corpus.Citation)
	for _, cit := range compose.FlattenCitations(retrieved) {
		owned[cit.ID] = cit
	}
	resp := compose.ComposedResponse{
		Answer:     answer,
		Citations:  make([]corpus.Citation, 0, len(citationIDs)),
		Confidence: confidence,
	}
	for _, id := range citationIDs {
		cit, ok := owned[id]
		if !ok {
			return compose.ComposedResponse{}, fmt.Errorf("generate rpc: %s: %w", id, ErrUnknownCitation)
		}
		resp.Citations = append(resp.Citations, cit)
	}

	if c.cache != nil {
		c.cache.Set(key, cloneResponse(resp), cache.DefaultExpiration)
	}
	return resp, nil
}

func cacheKey(query string, ids []string) string {
	return query + "\x00" + strings.Join(ids, ",")
}

func cloneResponse(r compose.ComposedResponse) compose.ComposedResponse {
	r.Citations = append([]corpus.Citation{}, r.Citations...)
	return r
}

// #endregion generate
