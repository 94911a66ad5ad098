package main

import (
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

func detectCmd() *cobra.Command {
	var recommend bool
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List subjects eligible for more than one bucket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, overlaps, err := detect(cmd)
			if err != nil {
				return err
			}
			if recommend {
				overlaps = eng.Recommend(overlaps)
			}
			return render(cmd.OutOrStdout(), format, overlaps, overlapTable)
		},
	}
	cmd.Flags().BoolVar(&recommend, "recommend", false, "attach confidence, reasoning and alternatives")
	return cmd
}

func resolveCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Pick one bucket per overlapping subject",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := engine.ParseStrategy(strategy); err != nil {
				return err
			}
			eng, overlaps, err := detect(cmd)
			if err != nil {
				return err
			}
			decisions, err := eng.AutoResolve(cmd.Context(), eng.Recommend(overlaps), strategy)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, decisions, decisionTable)
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", engine.BestFit.String(), "resolution strategy")
	return cmd
}

func presentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "present",
		Short: "Show a display-ready summary of overlaps and recommendations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, overlaps, err := detect(cmd)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, eng.Present(overlaps), bundleTable)
		},
	}
}

func strategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List resolution strategies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return render(cmd.OutOrStdout(), format, engine.Strategies(), strategyTable)
		},
	}
}

func detect(cmd *cobra.Command) (*engine.Engine, []segment.OverlapCase, error) {
	f, err := loadFixture(fixturePath)
	if err != nil {
		return nil, nil, err
	}
	eng, err := newEngine()
	if err != nil {
		return nil, nil, err
	}
	overlaps, err := eng.DetectOverlaps(cmd.Context(), f.Subjects, f.Buckets)
	if err != nil {
		return nil, nil, err
	}
	return eng, overlaps, nil
}
