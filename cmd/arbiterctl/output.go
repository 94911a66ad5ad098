package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// render writes v as indented JSON or through the table printer.
func render[T any](w io.Writer, format string, v T, table func(io.Writer, T) error) error {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatTable, "":
		return table(w, v)
	default:
		return fmt.Errorf("unknown output format %q (valid formats: table, json)", format)
	}
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = headerStyle.Render(h)
	}
	if _, err := fmt.Fprintln(tw, strings.Join(styled, "\t")); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return tw.Flush()
}

func empty(w io.Writer, msg string) error {
	_, err := fmt.Fprintln(w, mutedStyle.Render(msg))
	return err
}

func overlapTable(w io.Writer, overlaps []segment.OverlapCase) error {
	if len(overlaps) == 0 {
		return empty(w, "No overlaps found.")
	}
	rows := make([][]string, len(overlaps))
	for i, oc := range overlaps {
		ids := make([]string, len(oc.Matches))
		for j, m := range oc.Matches {
			ids[j] = fmt.Sprintf("%s (%.3f)", m.BucketID, m.Score)
		}
		conf := "-"
		if oc.Enriched {
			conf = fmt.Sprintf("%.3f", oc.Confidence)
		}
		rows[i] = []string{oc.Subject.ID, strings.Join(ids, ", "), oc.RecommendedBucketID, conf, fmt.Sprintf("%.3f", oc.Priority)}
	}
	return writeTable(w, []string{"SUBJECT", "BUCKETS", "RECOMMENDED", "CONFIDENCE", "PRIORITY"}, rows)
}

func decisionTable(w io.Writer, decisions []segment.Decision) error {
	if len(decisions) == 0 {
		return empty(w, "No decisions made.")
	}
	rows := make([][]string, len(decisions))
	for i, d := range decisions {
		rows[i] = []string{d.SubjectID, d.BucketID, d.Strategy,
			fmt.Sprintf("%.3f", d.MatchScore), fmt.Sprintf("%.3f", d.Confidence), d.Reason}
	}
	return writeTable(w, []string{"SUBJECT", "BUCKET", "STRATEGY", "SCORE", "CONFIDENCE", "REASON"}, rows)
}

func bundleTable(w io.Writer, b engine.Bundle) error {
	s := b.Summary
	if _, err := fmt.Fprintf(w, "%s\n%d conflicts, %.2f buckets each, %d high value (%.1f%%)\n\n",
		titleStyle.Render("Overlap summary"),
		s.TotalConflicts, s.AverageBucketsPerConflict, s.HighValueConflicts, s.HighValuePercentage); err != nil {
		return err
	}
	if s.TotalConflicts == 0 {
		return nil
	}

	conflicts := make([][]string, len(b.Conflicts))
	for i, c := range b.Conflicts {
		conflicts[i] = []string{c.SubjectName, c.Revenue, c.Volume, c.UnitPrice, c.Margin, strings.Join(c.Buckets, ", "), c.Priority}
	}
	if err := writeTable(w, []string{"SUBJECT", "REVENUE", "VOLUME", "PRICE", "MARGIN", "BUCKETS", "PRIORITY"}, conflicts); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Recommendations")); err != nil {
		return err
	}
	recs := make([][]string, len(b.Recommendations))
	for i, r := range b.Recommendations {
		recs[i] = []string{r.SubjectName, r.BucketName, r.MatchScore, r.Confidence, r.Reasoning}
	}
	return writeTable(w, []string{"SUBJECT", "BUCKET", "MATCH", "CONFIDENCE", "REASONING"}, recs)
}

func strategyTable(w io.Writer, infos []engine.StrategyInfo) error {
	rows := make([][]string, len(infos))
	for i, s := range infos {
		auto := "no"
		if s.AutoResolvable {
			auto = "yes"
		}
		rows[i] = []string{s.Name, auto, s.Description}
	}
	return writeTable(w, []string{"STRATEGY", "AUTO", "DESCRIPTION"}, rows)
}
