/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

// Command echoserver is a minimal demonstration binary wiring socket/server
// behind a cobra command and viper-bound flags: it echoes every inbound
// buffer back to its sender, and when started with --broadcast also fans
// the same bytes out to every other connected peer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sabouaram/tcpcore/logging"
	"github.com/sabouaram/tcpcore/netproto"
	"github.com/sabouaram/tcpcore/socket"
	"github.com/sabouaram/tcpcore/socket/config"
	"github.com/sabouaram/tcpcore/socket/server"
	"github.com/sabouaram/tcpcore/tlsconfig"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "echoserver",
		Short: "run the tcpcore echo/broadcast demo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("host", "0.0.0.0", "bind address")
	flags.Uint16("port", 9000, "bind port")
	flags.Int("threads", 0, "worker pool size; 0 runs handlers on the loop goroutine")
	flags.Bool("broadcast", false, "fan every reply out to every other connected peer")
	flags.String("tls-cert", "", "PEM certificate file; enables TLS when set with --tls-key")
	flags.String("tls-key", "", "PEM private key file")
	flags.String("tls-version", "1.2", "minimum TLS version")
	flags.String("tls-ciphers", "", "colon separated cipher suite names")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("ECHOSERVER")
	v.AutomaticEnv()

	return cmd
}

func run(v *viper.Viper) error {
	log := logging.New(logging.InfoLevel, os.Stdout)

	cfg := config.Server{
		Network:    netproto.TCP,
		Host:       v.GetString("host"),
		Port:       uint16(v.GetUint("port")),
		ThreadSize: v.GetInt("threads"),
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	if cert := v.GetString("tls-cert"); cert != "" {
		if !srv.SetTLS(cert, v.GetString("tls-key"), v.GetString("tls-version"), v.GetString("tls-ciphers"), tlsconfig.FlagPreferServerCipherSuites) {
			return fmt.Errorf("loading TLS material from %s", cert)
		}
	}

	broadcast := v.GetBool("broadcast")

	log.Entry(logging.InfoLevel, "starting echo server").
		Field("host", cfg.Host).
		Field("port", cfg.Port).
		Field("tls", srv.IsTLS()).
		Field("broadcast", broadcast).
		Log()

	return srv.Run(echoHandler(broadcast))
}

// echoHandler builds a Handler that keeps every connection alive and echoes
// the input back to its sender; when broadcast is true the same reply is
// also fanned out to every other peer.
func echoHandler(broadcast bool) socket.Handler {
	return func(input []byte, keepalive *bool, doBroadcast *bool, client *socket.ClientInfo, filter *socket.FilterHandler) []byte {
		*keepalive = true
		*doBroadcast = broadcast

		out := make([]byte, len(input))
		copy(out, input)
		return out
	}
}
