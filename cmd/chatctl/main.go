package main

import (
	"github.com/mcastellin/chatmesh/cmd/chatctl/cmd"
)

func main() {
	cmd.Execute()
}
