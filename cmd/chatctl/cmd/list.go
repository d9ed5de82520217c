package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcastellin/chatmesh/pkg/registryclient"
	"github.com/mcastellin/chatmesh/pkg/transport"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list the registry's current active-peer view",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sink := &transport.RPCClient{Addr: registryAddr, Timeout: timeout}
		client := registryclient.New(sink)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		peers, err := client.List(ctx)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			os.Exit(1)
		}
		for _, p := range peers {
			fmt.Printf("%d\t%s\t%s\n", p.Rank, p.ID, p.Endpoint)
		}
	},
}
