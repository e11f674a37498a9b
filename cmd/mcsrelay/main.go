package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "mcsrelay",
		Short: "WebSocket relay between media clients and a media control server",
	}
	root.AddCommand(newRunCmd())

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}
