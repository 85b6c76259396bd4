package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"collage-api/internal/assets"
	"collage-api/internal/config"
	"collage-api/internal/discovery"
	"collage-api/internal/logging"
	"collage-api/internal/manifest"
	"collage-api/internal/security"
	"collage-api/web/handler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, err := rootCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() (*cobra.Command, error) {
	v := viper.New()
	cmd := &cobra.Command{
		Use:          "collage-web",
		Short:        "Serve photo collage template manifests and assets over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if err := logging.Init(cfg.LogLevel); err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
	if err := config.BindFlags(cmd.Flags(), v); err != nil {
		return nil, err
	}
	return cmd, nil
}

// localIP returns the first non-loopback IPv4 address of the host.
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return ""
}

func serve(ctx context.Context, cfg config.Config) error {
	if info, err := os.Stat(cfg.AssetRoot); err != nil || !info.IsDir() {
		slog.Warn("asset root is not a directory; manifests will be reported missing", "asset-root", cfg.AssetRoot)
	}

	catalog := manifest.NewCatalog(
		manifest.NewLoader(manifest.DirStore{Root: cfg.AssetRoot}),
		manifest.NewNormalizer(cfg.BaseURL),
	)
	h := handler.New(handler.Options{
		Catalog:   catalog,
		Assets:    assets.NewStore(cfg.AssetRoot, cfg.MaxUpload),
		MaxUpload: cfg.MaxUpload,
		Debug:     cfg.Debug,
		Logger:    slog.Default(),
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      h.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	host := localIP()
	if host == "" {
		host = "127.0.0.1"
	}
	scheme := "http"
	if cfg.TLS {
		tlsConfig, err := security.SelfSignedConfig([]string{"localhost", "127.0.0.1", host}, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("generate TLS certificate: %w", err)
		}
		srv.TLSConfig = tlsConfig
		scheme = "https"
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("collage api listening", "addr", ln.Addr().String(), "scheme", scheme, "asset-root", cfg.AssetRoot)
		var err error
		if cfg.TLS {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Discovery {
		_, port, _ := net.SplitHostPort(ln.Addr().String())
		announce := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, port))
		g.Go(func() error {
			if err := discovery.Listen(gctx, discovery.DefaultPort, announce); err != nil {
				slog.Warn("LAN discovery disabled", "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}
