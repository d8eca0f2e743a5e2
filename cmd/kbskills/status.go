// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/Stellven/KBSkills/internal/retrieval"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base status",
	Long: `Status reports the LightRAG graph under data_dir/graph (files, documents,
entities, relations, size) and the SQLite chunk index when one exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := retrieval.GetStatus(cfg.DataDir, cfg.Retrieval.IndexPath)
		if err != nil {
			return err
		}
		st.Write(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
