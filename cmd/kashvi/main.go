package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskqueue",
	Short: "Background job queue worker CLI",
	Long:  "taskqueue launches worker pools against a pluggable job queue driver (sync, memory, file, redis).",
}

func init() {
	rootCmd.AddCommand(queueWorkCmd)
}
