package codec

import (
	"context"
	"errors"

	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc

// GeneratorServer is the server side of the Generator service.
type GeneratorServer interface {
	Generate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Generator service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GeneratorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Generate",
			Handler:    generateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "casekb/v1/generator.proto",
}

func generateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GeneratorServer).Generate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: generateMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GeneratorServer).Generate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service-desc

// #region server

// Server exposes a local compose.Generator over gRPC. Article IDs in requests are resolved
// against the server's corpus.
type Server struct {
	corpus    *corpus.Corpus
	generator compose.Generator
	log       *zap.Logger
}

// NewServer wraps generator. A nil logger is replaced by a no-op one.
func NewServer(c *corpus.Corpus, generator compose.Generator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{corpus: c, generator: generator, log: log}
}

// Register adds the Generator service and a health service reporting it as serving.
// The returned health server lets the caller flip status on shutdown.
func (s *Server) Register(gs *grpc.Server) *health.Server {
	gs.RegisterService(&ServiceDesc, s)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return hs
}

// Generate resolves the requested articles and runs the wrapped generator.
func (s *Server) Generate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	query, ids, err := decodeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	retrieved := make([]corpus.KnowledgeArticle, 0, len(ids))
	for _, id := range ids {
		a, err := s.corpus.Article(id)
		if errors.Is(err, corpus.ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "article %s", id)
		}
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		retrieved = append(retrieved, a)
	}

	resp, err := s.generator.Generate(ctx, query, retrieved)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, status.FromContextError(ctxErr).Err()
		}
		s.log.Error("generate", zap.Strings("article_ids", ids), zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}

	out, err := encodeResponse(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.log.Debug("generated",
		zap.Strings("article_ids", ids),
		zap.Strings("citation_ids", resp.CitationIDs()),
		zap.Float64("confidence", resp.Confidence),
	)
	return out, nil
}

// #endregion server
