package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vendlink/vendlink/config"
	"github.com/vendlink/vendlink/internal/app"
	"github.com/vendlink/vendlink/internal/webapi"
	"github.com/vendlink/vendlink/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	cfile       = flag.String("c", "vendlink.yml", "config file")
	showVersion = flag.Bool("v", false, "print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg := config.LoadConfig(*cfile)

	a := app.NewApplication(cfg)
	a.Init(cfg)
	defer a.Release()

	server := webserver.Init(a)
	webapi.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		warmCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		a.WarmupLinks(warmCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("server exited: %v", err)
		os.Exit(1)
	}
}
