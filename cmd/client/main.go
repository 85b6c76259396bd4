package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"collage-api/internal/client"
	"collage-api/internal/discovery"
	"collage-api/internal/manifest"
	"collage-api/internal/security"
)

var errInvalid = errors.New("manifest validation failed")

type app struct {
	server          string
	insecure        bool
	output          string
	discoverTimeout time.Duration

	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "collage-client",
		Short:        "Inspect, download and upload photo collage templates",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&a.server, "server", "s", os.Getenv("COLLAGE_SERVER"), "Server base URL (discovered on the LAN when empty)")
	root.PersistentFlags().BoolVar(&a.insecure, "insecure", false, "Skip TLS verification (needed for self-signed servers)")
	root.PersistentFlags().DurationVar(&a.discoverTimeout, "discover-timeout", 5*time.Second, "How long to wait for a LAN discovery reply")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "Output format: text, json, yaml")

	root.AddCommand(a.templatesCmd(), a.validateCmd(), a.dataCmd(), a.downloadCmd(), a.uploadCmd())
	return root
}

func (a *app) client(ctx context.Context) (*client.Client, error) {
	server := a.server
	if server == "" {
		fmt.Fprintln(a.stderr, "Broadcasting for servers...")
		found, err := discovery.Find(ctx, discovery.DefaultPort, a.discoverTimeout)
		if err != nil {
			return nil, fmt.Errorf("no server given and discovery failed: %w", err)
		}
		fmt.Fprintf(a.stderr, "Found server at %s\n", found)
		server = found
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = security.ClientConfig(a.insecure)
	c, err := client.New(server, &http.Client{Transport: transport})
	if err != nil {
		return nil, err
	}
	c.Progress = a.stderr
	return c, nil
}

func (a *app) templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List template types and their manifest summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			summaries, err := c.Templates(cmd.Context())
			if err != nil {
				return err
			}
			return render(a.stdout, a.output, summaries, renderSummaries)
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [type]",
		Short: "Validate one manifest, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				t, err := manifest.ParseResourceType(args[0])
				if err != nil {
					return err
				}
				report, err := c.Validate(cmd.Context(), t)
				if err != nil {
					return err
				}
				if err := render(a.stdout, a.output, report, renderReport); err != nil {
					return err
				}
				if !report.Valid {
					return errInvalid
				}
				return nil
			}

			agg, err := c.ValidateAll(cmd.Context())
			if err != nil {
				return err
			}
			if err := render(a.stdout, a.output, agg, renderAggregate); err != nil {
				return err
			}
			if !agg.Valid {
				return errInvalid
			}
			return nil
		},
	}
}

func (a *app) dataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "data <type>",
		Short: "Print a manifest as served, with asset URLs absolutized where applicable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := manifest.ParseResourceType(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			raw, err := c.Data(cmd.Context(), t)
			if err != nil {
				return err
			}
			return renderRaw(a.stdout, a.output, raw)
		},
	}
}

func (a *app) downloadCmd() *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "download <type> <path>",
		Short: "Download a thumbnail or zip referenced by a manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := manifest.ParseResourceType(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			if dest == "" {
				dest = filepath.Base(args[1])
			}
			out, err := os.Create(dest)
			if err != nil {
				return err
			}
			n, err := c.Download(cmd.Context(), t, args[1], out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(dest)
				return err
			}
			fmt.Fprintf(a.stdout, "Successfully downloaded %s (%d bytes)\n", dest, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "Destination file (defaults to the asset's base name)")
	return cmd
}

func (a *app) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <type> <file>",
		Short: "Upload an asset into a template type's uploads directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := manifest.ParseResourceType(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			up, err := c.Upload(cmd.Context(), t, args[1])
			if err != nil {
				return err
			}
			return render(a.stdout, a.output, up, renderUpload)
		},
	}
}
