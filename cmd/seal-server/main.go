// Command seal-server runs the forward HTTP/HTTPS proxy described by
// internal/sealserver, exposing its tunables as flags while keeping the
// original service's zero-flag defaults (0.0.0.0:8085, info-level
// logging) unchanged.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sealhq/seal-proxy/internal/logging"
	"github.com/sealhq/seal-proxy/internal/sealserver"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		addr           string
		port           int
		logLevel       string
		readTimeout    time.Duration
		connectTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seal-server",
		Short: "A concurrent forward HTTP/HTTPS proxy",
		Long: `seal-server accepts client connections, forwards ordinary requests to
their origin server rewriting them into origin-form, and tunnels CONNECT
requests opaquely for HTTPS.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logging.ParseThreshold(logLevel))
			defer log.Sync()

			srv := sealserver.New(sealserver.Config{
				Addr:           addr,
				Port:           port,
				ConnectTimeout: connectTimeout,
				ReadTimeout:    readTimeout,
			}, log)

			srv.Run(context.Background())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "0.0.0.0", "address to bind")
	flags.IntVar(&port, "port", 8085, "port to bind")
	flags.StringVar(&logLevel, "log-level", "info", "log threshold: error, warn, url, info")
	flags.DurationVar(&readTimeout, "read-timeout", 60*time.Second, "idle read timeout per client connection")
	flags.DurationVar(&connectTimeout, "connect-timeout", 10*time.Second, "dial timeout for upstream connections")

	return cmd
}
