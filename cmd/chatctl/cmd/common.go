package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mcastellin/chatmesh/pkg/transport"
	"github.com/mcastellin/chatmesh/pkg/wire"
)

func brokerRequest(service string, data map[string]any) {
	client := &transport.RPCClient{Addr: brokerAddr, Timeout: timeout}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reply, err := client.Request(ctx, wire.Frame{Service: service, Data: data})
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	printFrame(reply)
}

func printFrame(f wire.Frame) {
	out := map[string]any{"service": f.Service, "data": f.Data}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", out)
		return
	}
	fmt.Println(string(b))
}
