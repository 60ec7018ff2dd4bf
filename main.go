package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tablebook",
	Short: "Restaurant table booking backend",
	Long: `tablebook serves the reservation API and runs the meal reminder scheduler.
Without a subcommand it behaves like "serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(remindCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printRoutes(r *gin.Engine, log zerolog.Logger) {
	for _, route := range r.Routes() {
		log.Debug().Msgf("%-6s %s", route.Method, route.Path)
	}
}
