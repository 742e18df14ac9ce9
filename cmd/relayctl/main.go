// relayctl manages rooms on a running signaling relay and probes it end to end.
//
//	relayctl rooms create --max 2
//	relayctl rooms list
//	relayctl probe --server http://localhost:8001
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Inspect and probe a signaling relay",
	Long:  `relayctl talks to a signaling relay over its HTTP room API and websocket endpoint. It can create and inspect rooms, and run a two-client probe that pushes a real WebRTC offer, answer and ICE candidate through the relay.`,
}

func init() {
	def := os.Getenv("RELAY_URL")
	if def == "" {
		def = "http://localhost:8001"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", def, "relay base URL (env RELAY_URL)")

	rootCmd.AddCommand(roomsCmd, probeCmd)
}

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}
