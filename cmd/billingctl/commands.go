package main

import (
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and issue invoices for contracts due on or before --as-of",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseAsOf()
		if err != nil {
			return err
		}
		rt, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer rt.finish(cmd)

		result, err := rt.services.BillingRun.GenerateDueInvoices(rt.ctx, asOf)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Renew or expire contracts whose end date is before --as-of",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseAsOf()
		if err != nil {
			return err
		}
		rt, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer rt.finish(cmd)

		result, err := rt.services.Contracts.ExpireContracts(rt.ctx, asOf)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var (
	scheduleFrom  string
	scheduleCount int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule CONTRACT_ID",
	Short: "Preview the upcoming invoice dates of a contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer rt.finish(cmd)

		schedule, err := rt.services.Contracts.GetSchedule(rt.ctx, args[0], scheduleFrom, scheduleCount)
		if err != nil {
			return err
		}
		return printJSON(cmd, schedule)
	},
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, expireCmd} {
		c.Flags().StringVar(&asOfFlag, "as-of", "", "Run date (YYYY-MM-DD), defaults to today")
	}
	scheduleCmd.Flags().StringVar(&scheduleFrom, "from", "", "First date considered (YYYY-MM-DD)")
	scheduleCmd.Flags().IntVar(&scheduleCount, "count", 12, "Number of dates")

	rootCmd.AddCommand(generateCmd, expireCmd, scheduleCmd)
}
