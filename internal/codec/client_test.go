package codec

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region helpers
type generatorFunc func(ctx context.Context, query string, retrieved []corpus.KnowledgeArticle) (compose.ComposedResponse, error)

func (f generatorFunc) Generate(ctx context.Context, query string, retrieved []corpus.KnowledgeArticle) (compose.ComposedResponse, error) {
	return f(ctx, query, retrieved)
}

// countingGenerator wraps the template generator and counts calls.
type countingGenerator struct {
	calls atomic.Int32
	inner compose.Generator
}

func (g *countingGenerator) Generate(ctx context.Context, query string, retrieved []corpus.KnowledgeArticle) (compose.ComposedResponse, error) {
	g.calls.Add(1)
	return g.inner.Generate(ctx, query, retrieved)
}

func startServer(t *testing.T, gen compose.Generator) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(corpus.Default(), gen, zap.NewNop()).Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func defaultArticle(t *testing.T, id string) corpus.KnowledgeArticle {
	t.Helper()
	a, err := corpus.Default().Article(id)
	require.NoError(t, err)
	return a
}

// scriptedConn answers Invoke from a list of canned results, one per call.
type scriptedConn struct {
	grpc.ClientConnInterface
	calls   int
	errs    []error
	reply   *structpb.Struct
	methods []string
}

func (s *scriptedConn) Invoke(_ context.Context, method string, _ any, reply any, _ ...grpc.CallOption) error {
	s.methods = append(s.methods, method)
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return s.errs[i]
	}
	proto.Merge(reply.(*structpb.Struct), s.reply)
	return nil
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

// #endregion helpers

// #region round-trip-tests
func TestClient_MatchesLocalComposer(t *testing.T) {
	conn := startServer(t, compose.NewTemplateGenerator())
	client := NewClientWithConn(conn)
	retrieved := []corpus.KnowledgeArticle{defaultArticle(t, "POL-FL-2024"), defaultArticle(t, "SOP-CLAIM-01")}

	got, err := client.Generate(context.Background(), "Flood", retrieved)
	require.NoError(t, err)

	want := compose.NewTemplateGenerator().Compose(retrieved)
	assert.Equal(t, want.Answer, got.Answer)
	assert.Equal(t, want.Confidence, got.Confidence)
	assert.Equal(t, want.Citations, got.Citations)
	assert.NoError(t, compose.VerifyProvenance(got, retrieved))
}

func TestClient_EmptyRetrieval(t *testing.T) {
	conn := startServer(t, compose.NewTemplateGenerator())
	client := NewClientWithConn(conn)

	got, err := client.Generate(context.Background(), "zzzz", nil)
	require.NoError(t, err)

	assert.Equal(t, compose.NoInformationAnswer, got.Answer)
	assert.Equal(t, compose.ConfidenceEmpty, got.Confidence)
	assert.NotNil(t, got.Citations)
	assert.Empty(t, got.Citations)
}

func TestClient_CachesIdenticalRequests(t *testing.T) {
	gen := &countingGenerator{inner: compose.NewTemplateGenerator()}
	conn := startServer(t, gen)
	client := NewClientWithConn(conn)
	retrieved := []corpus.KnowledgeArticle{defaultArticle(t, "KB-HIPAA-2023")}

	first, err := client.Generate(context.Background(), "HIPAA", retrieved)
	require.NoError(t, err)
	first.Citations[0].Content = "mutated"

	second, err := client.Generate(context.Background(), "HIPAA", retrieved)
	require.NoError(t, err)
	assert.Equal(t, int32(1), gen.calls.Load())
	assert.NotEqual(t, "mutated", second.Citations[0].Content)

	_, err = client.Generate(context.Background(), "telehealth", retrieved)
	require.NoError(t, err)
	assert.Equal(t, int32(2), gen.calls.Load())
}

func TestClient_CacheDisabled(t *testing.T) {
	gen := &countingGenerator{inner: compose.NewTemplateGenerator()}
	conn := startServer(t, gen)
	client := NewClientWithConn(conn, WithCacheTTL(0))
	retrieved := []corpus.KnowledgeArticle{defaultArticle(t, "KB-HIPAA-2023")}

	for i := 0; i < 2; i++ {
		_, err := client.Generate(context.Background(), "HIPAA", retrieved)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), gen.calls.Load())
}

func TestHealth_Serving(t *testing.T) {
	conn := startServer(t, compose.NewTemplateGenerator())

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

// #endregion round-trip-tests

// #region error-tests
func TestClient_UnknownArticleIsNotFound(t *testing.T) {
	gen := &countingGenerator{inner: compose.NewTemplateGenerator()}
	conn := startServer(t, gen)
	client := NewClientWithConn(conn, WithRetry(fastRetry(3)))
	stray := corpus.KnowledgeArticle{ID: "POL-XX-1999", Title: "Unknown", Category: corpus.CategoryPolicy}

	_, err := client.Generate(context.Background(), "anything", []corpus.KnowledgeArticle{stray})
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(errors.Unwrap(err)))
	assert.Zero(t, gen.calls.Load())
}

func TestClient_RejectsForeignCitation(t *testing.T) {
	gen := generatorFunc(func(context.Context, string, []corpus.KnowledgeArticle) (compose.ComposedResponse, error) {
		return compose.ComposedResponse{
			Answer:     "made up",
			Citations:  []corpus.Citation{{ID: "CIT-999"}},
			Confidence: 0.95,
		}, nil
	})
	conn := startServer(t, gen)
	client := NewClientWithConn(conn)

	_, err := client.Generate(context.Background(), "Flood", []corpus.KnowledgeArticle{defaultArticle(t, "POL-FL-2024")})
	assert.ErrorIs(t, err, ErrUnknownCitation)
}

func TestClient_ServerErrorIsInternal(t *testing.T) {
	gen := generatorFunc(func(context.Context, string, []corpus.KnowledgeArticle) (compose.ComposedResponse, error) {
		return compose.ComposedResponse{}, errors.New("model offline")
	})
	conn := startServer(t, gen)
	client := NewClientWithConn(conn, WithRetry(fastRetry(3)))

	_, err := client.Generate(context.Background(), "Flood", nil)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(errors.Unwrap(err)))
	assert.Contains(t, err.Error(), "model offline")
}

func TestClient_PerAttemptTimeout(t *testing.T) {
	gen := &countingGenerator{inner: compose.NewTemplateGenerator(compose.WithDelay(time.Second))}
	conn := startServer(t, gen)
	client := NewClientWithConn(conn, WithTimeout(30*time.Millisecond), WithRetry(fastRetry(2)))

	start := time.Now()
	_, err := client.Generate(context.Background(), "Flood", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

// #endregion error-tests

// #region retry-tests
func TestClient_RetriesUnavailable(t *testing.T) {
	reply, err := encodeResponse(compose.NewTemplateGenerator().Compose(nil))
	require.NoError(t, err)
	sc := &scriptedConn{
		errs:  []error{status.Error(codes.Unavailable, "down"), status.Error(codes.Unavailable, "down")},
		reply: reply,
	}
	client := NewClientWithConn(sc, WithRetry(fastRetry(3)))

	got, err := client.Generate(context.Background(), "Flood", nil)
	require.NoError(t, err)
	assert.Equal(t, compose.NoInformationAnswer, got.Answer)
	assert.Equal(t, 3, sc.calls)
	assert.Equal(t, generateMethod, sc.methods[0])
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "down")
	sc := &scriptedConn{errs: []error{unavailable, unavailable, unavailable}}
	client := NewClientWithConn(sc, WithRetry(fastRetry(3)))

	_, err := client.Generate(context.Background(), "Flood", nil)
	require.Error(t, err)
	assert.Equal(t, 3, sc.calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestClient_NoRetryOnInvalidArgument(t *testing.T) {
	sc := &scriptedConn{errs: []error{status.Error(codes.InvalidArgument, "bad")}}
	client := NewClientWithConn(sc, WithRetry(fastRetry(3)))

	_, err := client.Generate(context.Background(), "Flood", nil)
	require.Error(t, err)
	assert.Equal(t, 1, sc.calls)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(status.Error(codes.Unavailable, "")))
	assert.True(t, Retryable(status.Error(codes.DeadlineExceeded, "")))
	assert.True(t, Retryable(status.Error(codes.ResourceExhausted, "")))
	assert.False(t, Retryable(status.Error(codes.NotFound, "")))
	assert.False(t, Retryable(errors.New("plain")))
	assert.False(t, Retryable(nil))
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Hour}
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context, int) error {
			calls++
			return status.Error(codes.Unavailable, "down")
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, err.Error(), "down")
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not stop on cancel")
	}
}

// #endregion retry-tests

// #region wire-tests
func TestDecodeRequest_Malformed(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"article_ids": []any{"A"}})
	require.NoError(t, err)
	_, _, err = decodeRequest(s)
	assert.ErrorIs(t, err, errMalformed)

	s, err = structpb.NewStruct(map[string]any{"query": "q", "article_ids": []any{1.0}})
	require.NoError(t, err)
	_, _, err = decodeRequest(s)
	assert.ErrorIs(t, err, errMalformed)
}

func TestDecodeResponse_MissingConfidence(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"answer": "a"})
	require.NoError(t, err)
	_, _, _, err = decodeResponse(s)
	assert.ErrorIs(t, err, errMalformed)
}

// #endregion wire-tests
