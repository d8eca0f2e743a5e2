// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Stellven/KBSkills/internal/agent"
	"github.com/Stellven/KBSkills/internal/outline"
	"github.com/Stellven/KBSkills/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query <topic>",
	Short: "Generate an outline for a topic",
	Long: `Query runs the full pipeline for a topic: decompose it into 3-5 sub-topics,
retrieve knowledge for each, apply matching skills, identify the concerns
of the knowledge base, and generate a hierarchical outline.

The outline is written to stdout as Markdown (styled when stdout is a
terminal), JSON, or YAML. Use --skills to force skills by ID or pattern.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	topic := strings.TrimSpace(strings.Join(args, " "))
	modeFlag, _ := cmd.Flags().GetString("mode")
	skillFlag, _ := cmd.Flags().GetStringSlice("skills")
	formatFlag, _ := cmd.Flags().GetString("format")
	plain, _ := cmd.Flags().GetBool("plain")

	if modeFlag == "" {
		modeFlag = string(cfg.Retrieval.DefaultMode)
	}
	mode, err := types.ParseRetrievalMode(modeFlag)
	if err != nil {
		return err
	}
	format, err := outline.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, closeBackend, err := newAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	res, err := a.Run(ctx, agent.Request{Topic: topic, Mode: mode, SkillOverride: skillFlag})
	if err != nil {
		return err
	}
	printRunSummary(cmd.ErrOrStderr(), res)

	stdout := cmd.OutOrStdout()
	if format == outline.FormatMarkdown && !plain && isTerminal(stdout) {
		width, _, _ := term.GetSize(int(os.Stdout.Fd()))
		styled, err := outline.Styled(outline.Markdown(res.Outline), width)
		if err == nil {
			_, err = io.WriteString(stdout, styled)
			return err
		}
	}
	return outline.Write(stdout, res.Outline, format)
}

func printRunSummary(w io.Writer, res *agent.Result) {
	fmt.Fprintf(w, "Sub-topics: %d, fragments with knowledge: %d/%d, concerns: %d\n",
		len(res.SubTopics), nonEmpty(res.Fragments), len(res.Fragments), len(res.Concerns))
	if len(res.Outline.ActivatedSkills) > 0 {
		fmt.Fprintf(w, "Skills: %s\n", strings.Join(res.Outline.ActivatedSkills, ", "))
	}
	for _, d := range res.Degradations {
		fmt.Fprintf(w, "  [%s] %s: %s\n", d.Stage, d.Kind, d.Detail)
	}
}

func nonEmpty(frags []types.KnowledgeFragment) int {
	n := 0
	for _, f := range frags {
		if !f.Empty() {
			n++
		}
	}
	return n
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func init() {
	queryCmd.Flags().String("mode", "", "retrieval mode: naive, local, global, or hybrid (default from config)")
	queryCmd.Flags().StringSlice("skills", nil, "force skills by ID or glob pattern (comma-separated)")
	queryCmd.Flags().String("format", "markdown", "output format: markdown, json, or yaml")
	queryCmd.Flags().Bool("plain", false, "do not style Markdown output on a terminal")

	rootCmd.AddCommand(queryCmd)
}
