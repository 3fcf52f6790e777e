package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/liteshare/internal/config"
)

// clientFlags are shared by the share and view commands.
type clientFlags struct {
	relay    string
	token    string
	stun     string
	turn     string
	turnUser string
	turnPass string
	force    bool
	lite     bool
	rejoin   bool
}

func (f *clientFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.relay, "relay", "", "signaling relay WebSocket URL (env LITESHARE_RELAY)")
	fs.StringVar(&f.token, "token", "", "relay access token (env LITESHARE_TOKEN)")
	fs.StringVar(&f.stun, "stun", "", "STUN server URL (env STUN_SERVER)")
	fs.StringVar(&f.turn, "turn", "", "TURN server, e.g. turn:turn.example.com (env TURN_SERVER)")
	fs.StringVar(&f.turnUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	fs.StringVar(&f.turnPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	fs.BoolVar(&f.force, "force-relay", false, "only use TURN relay candidates")
	fs.BoolVar(&f.lite, "lite", false, "start in lite mode (env LITESHARE_LITE)")
	fs.BoolVar(&f.rejoin, "rejoin", false, "reconnect to the relay with backoff after a drop")
}

func (f *clientFlags) load(room string) (*config.Config, error) {
	return config.Load(config.Options{
		RelayURL:   f.relay,
		Token:      f.token,
		Room:       room,
		STUNServer: f.stun,
		TURNServer: f.turn,
		TURNUser:   f.turnUser,
		TURNPass:   f.turnPass,
		ForceRelay: f.force,
		LiteMode:   f.lite,
	})
}

func roomArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
