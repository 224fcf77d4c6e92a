package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielpatrickdp/case-knowledge/internal/codec"
	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"github.com/danielpatrickdp/case-knowledge/internal/config"
	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"github.com/danielpatrickdp/case-knowledge/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// #region main
func main() {
	cfg := config.Load()
	listen := flag.String("listen", cfg.Generator.ListenAddr, "gRPC listen address")
	flag.Parse()

	zl := logger.New(cfg.LogLevel, cfg.LogFile)
	defer zl.Sync()

	kb, _, err := corpus.Open(cfg.CorpusPath)
	if err != nil {
		zl.Fatal("load corpus", zap.String("path", cfg.CorpusPath), zap.Error(err))
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		zl.Fatal("listen", zap.String("addr", *listen), zap.Error(err))
	}

	gs := grpc.NewServer()
	gen := compose.NewTemplateGenerator(compose.WithDelay(cfg.GenerateDelay))
	hs := codec.NewServer(kb, gen, zl.Named("codec")).Register(gs)

	ctx := getCancellableContext()
	go func() {
		<-ctx.Done()
		zl.Info("shutting down")
		hs.Shutdown()
		gs.GracefulStop()
	}()

	zl.Info("generator serving",
		zap.String("addr", lis.Addr().String()),
		zap.String("service", codec.ServiceName),
		zap.Int("articles", kb.Len()),
	)
	if err := gs.Serve(lis); err != nil {
		zl.Fatal("serve", zap.Error(err))
	}
}

// #endregion main

func getCancellableContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		cancel()
	}()

	return ctx
}
