package cmd

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BioHazard786/liteshare/internal/config"
	"github.com/BioHazard786/liteshare/internal/discovery"
	"github.com/BioHazard786/liteshare/internal/logging"
	"github.com/BioHazard786/liteshare/internal/relay"
	"github.com/BioHazard786/liteshare/internal/server"
	"github.com/BioHazard786/liteshare/internal/ui"
	"github.com/BioHazard786/liteshare/internal/version"
)

var (
	flagListen    string
	flagRelayAuth string
	flagAdvertise bool
	flagName      string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay that pairs peers into rooms",
	Long: `Run the signaling relay. Peers connect over WebSocket at /ws, join a room
of at most two, and exchange offers, answers and ICE candidates through it.

Examples:
  liteshare relay
  liteshare relay --listen :8000 --token secret --advertise`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRelay(config.RelayOptions{
			ListenAddr: flagListen,
			Token:      flagRelayAuth,
			Advertise:  flagAdvertise,
		})
		if err != nil {
			return err
		}

		log := logging.Named("relay")
		ctx := cmd.Context()

		ln, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
		}

		hub := relay.NewHub(*cfg, log)
		go hub.Run(ctx)

		if cfg.Advertise {
			port := ln.Addr().(*net.TCPAddr).Port
			srv, err := discovery.Advertise(discovery.Advertisement{
				Instance:      flagName,
				Port:          port,
				Path:          server.WebSocketPath,
				TokenRequired: cfg.Token != "",
				Version:       version.Version,
			}, nil)
			if err != nil {
				log.Warn("mdns advertise failed", zap.Error(err))
				ui.PrintWarning("Could not advertise the relay on the local network")
			} else {
				defer srv.Shutdown()
				ui.PrintInfof("Advertising %s on the local network", discovery.Service)
			}
		}

		ui.PrintSuccessf("Relay listening on ws://%s%s", ln.Addr(), server.WebSocketPath)
		if cfg.Token == "" {
			ui.PrintWarning("No token set: any client can join rooms")
		}

		return server.Serve(ctx, ln, server.NewHandler(hub, cfg, log), log)
	},
}

func init() {
	relayCmd.Flags().StringVar(&flagListen, "listen", "", "listen address (env LITESHARE_ADDR)")
	relayCmd.Flags().StringVar(&flagRelayAuth, "token", "", "require this token on /ws (env LITESHARE_TOKEN)")
	relayCmd.Flags().BoolVar(&flagAdvertise, "advertise", false, "advertise the relay over mDNS")
	relayCmd.Flags().StringVar(&flagName, "name", "", "mDNS instance name (defaults to liteshare-<hostname>)")
	rootCmd.AddCommand(relayCmd)
}
