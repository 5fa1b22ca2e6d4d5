// Command omnigate runs the multi-channel messaging gateway.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "omnigate",
		Short:         "Webhook ingestion and delivery gateway for Meta messaging channels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
