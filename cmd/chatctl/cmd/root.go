// Package cmd implements chatctl, the command-line client for the
// chatmesh command broker and registry. Its subcommand layout follows
// mcastellin-golang-mastery/remote-procedure-call/cmd's root/subcommand
// split.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	brokerAddr   string
	registryAddr string
	timeout      time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "A command-line client for the chatmesh coordination core",
	Long: `chatctl issues client commands against the Command Broker
(login, channel, publish, message, users, channels) and reads the
active-peer list from the Registry.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&brokerAddr, "broker", "127.0.0.1:5557", "command broker client address")
	rootCmd.PersistentFlags().StringVar(&registryAddr, "registry", "127.0.0.1:5560", "registry address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	rootCmd.AddCommand(loginCmd, channelCmd, publishCmd, messageCmd, usersCmd, channelsCmd, listCmd)
}

// Execute runs chatctl.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
