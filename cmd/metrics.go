package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/message"

	"github.com/sells-group/practice-metrics/internal/export"
)

var matterCmd = &cobra.Command{
	Use:   "matter <matter-id>",
	Short: "Compute progress, efficiency, billing and risk for a matter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.Aggregator.MatterMetrics(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "matter metrics")
		}
		return render(os.Stdout, outputFormat, m, func(p *message.Printer, w io.Writer) {
			formatMatterMetrics(p, w, m)
		})
	},
}

var profileSave bool

var profileCmd = &cobra.Command{
	Use:   "profile <profile-id>",
	Short: "Compute workflow, completion, feedback and productivity for a practitioner",
	Long:  "Computes the practitioner's profile metrics. With --save the metric row is also written to user_metrics.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		compute := env.Aggregator.ProfileMetrics
		if profileSave {
			compute = env.Aggregator.RefreshProfile
		}
		m, err := compute(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "profile metrics")
		}
		return render(os.Stdout, outputFormat, m, func(p *message.Printer, w io.Writer) {
			formatProfileMetrics(p, w, m)
		})
	},
}

var overviewXLSX string

var overviewCmd = &cobra.Command{
	Use:   "overview <profile-id>",
	Short: "Summarize risk, billing and tasks across a practitioner's matters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		o, err := env.Aggregator.Overview(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "overview")
		}

		if overviewXLSX != "" {
			if err := export.SaveOverview(overviewXLSX, o); err != nil {
				return err
			}
			zap.L().Info("overview exported", zap.String("path", overviewXLSX))
		}

		return render(os.Stdout, outputFormat, o, func(p *message.Printer, w io.Writer) {
			formatOverview(p, w, o)
		})
	},
}

func init() {
	profileCmd.Flags().BoolVar(&profileSave, "save", false, "persist the metric row")
	overviewCmd.Flags().StringVar(&overviewXLSX, "xlsx", "", "also write the overview to this XLSX file")

	rootCmd.AddCommand(matterCmd, profileCmd, overviewCmd)
}
