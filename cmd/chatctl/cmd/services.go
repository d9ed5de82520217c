package cmd

import (
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login [user]",
	Short: "register a new user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		brokerRequest("login", map[string]any{"user": args[0]})
	},
}

var channelCmd = &cobra.Command{
	Use:   "channel [name]",
	Short: "create a new channel",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		brokerRequest("channel", map[string]any{"channel": args[0]})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish [channel] [user] [message]",
	Short: "publish a message to a channel",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		brokerRequest("publish", map[string]any{"channel": args[0], "user": args[1], "message": args[2]})
	},
}

var messageCmd = &cobra.Command{
	Use:   "message [src] [dst] [message]",
	Short: "send a private message to a user",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		brokerRequest("message", map[string]any{"src": args[0], "dst": args[1], "message": args[2]})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "list registered users",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		brokerRequest("users", map[string]any{})
	},
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "list known channels",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		brokerRequest("channels", map[string]any{})
	},
}
