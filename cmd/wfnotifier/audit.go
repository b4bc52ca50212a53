package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wfnotifier/internal/app"
)

var auditFlags struct {
	config string
	limit  int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print the most recent chat commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		entries, err := app.RecentCommands(cmd.Context(), auditFlags.config, auditFlags.limit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, e := range entries {
			status := "ok"
			if !e.OK {
				status = "error: " + e.Error
			}
			fmt.Fprintf(w, "%s %s %s %dms %s\n",
				e.At.UTC().Format(time.RFC3339), e.Prefix, e.Author, e.TookMS, status)
		}
		return nil
	},
}

func init() {
	f := auditCmd.Flags()
	f.StringVar(&auditFlags.config, "config", "./config.json", "path to config (json or yaml)")
	f.IntVar(&auditFlags.limit, "limit", 20, "number of rows")
}
