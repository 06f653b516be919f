package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/qr-tracker/internal/config"
	"github.com/vadimbarashkov/qr-tracker/internal/database/mongodb"
	"github.com/vadimbarashkov/qr-tracker/internal/service"
	"github.com/vadimbarashkov/qr-tracker/pkg/qrcode"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/vadimbarashkov/qr-tracker/internal/api/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer connectCancel()

	// One long-lived client shared by all requests; never reconnect per request.
	client, err := mongodb.New(connectCtx, cfg.Mongo.URI)
	if err != nil {
		return err
	}

	db := client.Database(cfg.Mongo.DB)

	if err := mongodb.EnsureIndexes(connectCtx, db); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return client.Disconnect(context.Background())
	})

	qrRepo := mongodb.NewQRCodeRepository(db, cfg.Mongo.QueryTimeout)
	qrSvc := service.NewQRCodeService(qrRepo, qrcode.NewGenerator(), cfg.BaseURL)

	r := myhttp.NewRouter(httplog.NewLogger("qr-tracker"), qrSvc, cfg.BaseURL)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}
