// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/Stellven/KBSkills/internal/skills"
	"github.com/Stellven/KBSkills/pkg/types"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Inspect skill definitions and matching",
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := skills.Load(cfg.SkillsDir, cfg.Matcher.DefaultThreshold)
		if err != nil {
			return err
		}
		writeSkillList(cmd.OutOrStdout(), reg.All())
		return nil
	},
}

func writeSkillList(w io.Writer, defs []*types.SkillDefinition) {
	if len(defs) == 0 {
		fmt.Fprintln(w, "No skills found.")
		return
	}
	fmt.Fprintf(w, "%-24s  %-24s  %-7s  %-9s  %s\n", "ID", "Name", "Version", "Threshold", "Steps")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, d := range defs {
		fmt.Fprintf(w, "%-24s  %-24s  %-7s  %-9.2f  %d\n",
			d.ID, d.Name(), d.Version, d.Trigger.Threshold, len(d.Framework.Steps))
	}
	fmt.Fprintf(w, "\n%d skills\n", len(defs))
}

var skillsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one skill definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := skills.Load(cfg.SkillsDir, cfg.Matcher.DefaultThreshold)
		if err != nil {
			return err
		}
		def, ok := reg.Get(args[0])
		if !ok {
			return fmt.Errorf("%w: %q", skills.ErrUnknownSkill, args[0])
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(def)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(def); err != nil {
			return err
		}
		return enc.Close()
	},
}

var skillsMatchCmd = &cobra.Command{
	Use:   "match <topic>",
	Short: "Score a topic against every skill",
	Long: `Match prints the domain, keyword, intent, and composite scores of every
skill for the topic, ranked by composite. Skills at or above their threshold
are marked with *.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, m, err := newMatcher(ctx, cfg)
		if err != nil {
			return err
		}
		report, err := m.MatchWithReport(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if report.EmbeddingErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: domain similarity unavailable: %v\n", report.EmbeddingErr)
		}
		writeMatchReport(cmd.OutOrStdout(), reg, report)
		return nil
	},
}

func writeMatchReport(w io.Writer, reg *skills.Registry, report *skills.MatchReport) {
	if len(report.Scores) == 0 {
		fmt.Fprintln(w, "No skills found.")
		return
	}
	matched := make(map[string]bool, len(report.Matched))
	for _, s := range report.Matched {
		matched[s.SkillID] = true
	}

	fmt.Fprintf(w, "   %-24s  %-9s  %-6s  %-7s  %-6s  %-9s  %s\n",
		"Skill", "Composite", "Domain", "Keyword", "Intent", "Threshold", "Signals")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, s := range report.Scores {
		mark := " "
		if matched[s.SkillID] {
			mark = "*"
		}
		threshold := 0.0
		if def, ok := reg.Get(s.SkillID); ok {
			threshold = def.Trigger.Threshold
		}
		var signals []string
		if len(s.MatchedDomains) > 0 {
			signals = append(signals, "domains="+strings.Join(s.MatchedDomains, "|"))
		}
		if len(s.MatchedKeywords) > 0 {
			signals = append(signals, "keywords="+strings.Join(s.MatchedKeywords, "|"))
		}
		fmt.Fprintf(w, "%s  %-24s  %-9.3f  %-6.3f  %-7.3f  %-6.1f  %-9.2f  %s\n",
			mark, s.SkillID, s.Composite, s.DomainSimilarity, s.KeywordScore, s.IntentScore, threshold,
			strings.Join(signals, " "))
	}
	fmt.Fprintf(w, "\n%d of %d skills matched\n", len(report.Matched), len(report.Scores))
}

func init() {
	skillsShowCmd.Flags().Bool("json", false, "print JSON instead of YAML")

	skillsCmd.AddCommand(skillsListCmd, skillsShowCmd, skillsMatchCmd)
	rootCmd.AddCommand(skillsCmd)
}
