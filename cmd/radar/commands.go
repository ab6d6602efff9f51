package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/repository"
	subscriptionsvc "github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/service"
	"github.com/FACorreiaa/subscription-radar/pkg/money"
)

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show monthly and yearly spending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			active := deps.Store.GetActive(ctx)
			fmt.Fprintf(out, "Active subscriptions: %d\n", len(active))
			fmt.Fprintf(out, "Monthly total:        %s\n", deps.Store.MonthlyTotal(ctx).Display())
			fmt.Fprintf(out, "Yearly total:         %s\n\n", deps.Store.YearlyTotal(ctx).Display())

			stats := deps.Store.CategoryBreakdown(ctx)
			if len(stats) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer tw.Flush()
			fmt.Fprintln(tw, "CATEGORY\tCOUNT\tTOTAL")
			for _, s := range stats {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Category, s.Count, s.Total.Display())
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var (
		category   string
		search     string
		activeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var subs []*repository.Subscription
			switch {
			case search != "":
				subs = deps.Store.Search(ctx, search)
			case category != "":
				c, err := repository.ParseCategory(category)
				if err != nil {
					return err
				}
				subs = deps.Store.GetByCategory(ctx, c)
			case activeOnly:
				subs = deps.Store.GetActive(ctx)
			default:
				subs = deps.Store.GetAll(ctx)
			}

			printSubscriptions(cmd.OutOrStdout(), subs, deps.Config.App.Currency)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only show this category")
	cmd.Flags().StringVarP(&search, "search", "s", "", "fuzzy search by name")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only show active subscriptions")
	return cmd
}

func upcomingCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List active subscriptions renewing soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs := deps.Store.GetUpcoming(cmd.Context(), days)
			printSubscriptions(cmd.OutOrStdout(), subs, deps.Config.App.Currency)
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "look ahead this many days")
	return cmd
}

func addCmd() *cobra.Command {
	var draft subscriptionsvc.Draft

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a subscription",
		Example: `  radar add --name Netflix --price 45.90 --category Streaming --next-payment 2024-02-15`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sub, err := deps.Store.Add(cmd.Context(), draft)
			if sub != nil {
				printSubscription(cmd.OutOrStdout(), sub, deps.Config.App.Currency)
			}
			return mutationError(cmd.ErrOrStderr(), err)
		},
	}

	cmd.Flags().StringVar(&draft.Name, "name", "", "subscription name")
	cmd.Flags().StringVar(&draft.Price, "price", "", "monthly price, e.g. 45.90 or 45,90")
	cmd.Flags().StringVar(&draft.Category, "category", "", "one of Streaming, Music, Productivity, Games, Education, Health, Other")
	cmd.Flags().StringVar(&draft.NextPayment, "next-payment", "", "next billing date (YYYY-MM-DD)")
	return cmd
}

func updateCmd() *cobra.Command {
	var name, price, category, nextPayment, status string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch subscriptionsvc.Patch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("price") {
				patch.Price = &price
			}
			if flags.Changed("category") {
				patch.Category = &category
			}
			if flags.Changed("next-payment") {
				patch.NextPayment = &nextPayment
			}
			if flags.Changed("status") {
				patch.Status = &status
			}

			sub, err := deps.Store.Update(cmd.Context(), args[0], patch)
			if sub != nil {
				printSubscription(cmd.OutOrStdout(), sub, deps.Config.App.Currency)
			}
			return mutationError(cmd.ErrOrStderr(), err)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&price, "price", "", "new price")
	cmd.Flags().StringVar(&category, "category", "", "new category")
	cmd.Flags().StringVar(&nextPayment, "next-payment", "", "new billing date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "active, paused or expired")
	return cmd
}

func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Pause an active subscription or resume a paused one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := deps.Store.ToggleStatus(cmd.Context(), args[0])
			if status != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], status)
			}
			return mutationError(cmd.ErrOrStderr(), err)
		},
	}
}

func payCmd() *cobra.Command {
	var amount, date string

	cmd := &cobra.Command{
		Use:   "pay <id>",
		Short: "Record a payment and move the next payment date one month ahead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sub, err := deps.Store.GetByID(ctx, args[0])
			if err != nil {
				return err
			}

			paid := sub.Price
			if amount != "" {
				if paid, err = money.ParseDecimal(amount); err != nil {
					return fmt.Errorf("invalid --amount: %w", err)
				}
			}

			var on repository.Date
			if date != "" {
				if on, err = repository.ParseDate(date); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}

			payment, err := deps.Store.RecordPayment(ctx, args[0], paid, on)
			if payment != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s on %s (payment %s)\n",
					money.NewFromDecimal(payment.Amount, deps.Config.App.Currency).Display(), payment.Date, payment.ID)
			}
			return mutationError(cmd.ErrOrStderr(), err)
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount paid (defaults to the subscription price)")
	cmd.Flags().StringVar(&date, "date", "", "payment date (defaults to today)")
	return cmd
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a subscription and its reminders",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := deps.Store.Remove(cmd.Context(), args[0])
			if err == nil || errors.Is(err, subscriptionsvc.ErrPersistence) {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			}
			return mutationError(cmd.ErrOrStderr(), err)
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every subscription and reminder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			return mutationError(cmd.ErrOrStderr(), deps.Store.ClearAll(cmd.Context()))
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting everything")
	return cmd
}

func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "export [csv|xlsx]",
		Short:     "Export subscriptions",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"csv", "xlsx"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			format := "csv"
			if len(args) == 1 {
				format = args[0]
			}
			if format == "xlsx" && output == "" {
				output = "subscriptions.xlsx"
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if format == "xlsx" {
				return deps.Store.ExportXLSX(ctx, w)
			}

			csv, err := deps.Store.ExportCSV(ctx)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, csv)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import subscriptions from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			result, err := deps.Store.ImportCSV(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d of %d rows\n", len(result.Imported), result.TotalRows)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  row %d: %v\n", e.Row, e.Err)
			}
			return nil
		},
	}
}

func prefsCmd() *cobra.Command {
	var (
		notifications bool
		reminderDays  int
		darkMode      bool
		biometric     bool
	)

	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			prefs := deps.Store.LoadPreferences(ctx)

			flags := cmd.Flags()
			changed := false
			if flags.Changed("notifications") {
				prefs.Notifications, changed = notifications, true
			}
			if flags.Changed("reminder-days") {
				prefs.ReminderDays, changed = reminderDays, true
			}
			if flags.Changed("dark-mode") {
				prefs.DarkMode, changed = darkMode, true
			}
			if flags.Changed("biometric-auth") {
				prefs.BiometricAuth, changed = biometric, true
			}
			if changed {
				if err := deps.Store.SavePreferences(ctx, prefs); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "notifications:  %t\n", prefs.Notifications)
			fmt.Fprintf(out, "reminderDays:   %d\n", prefs.ReminderDays)
			fmt.Fprintf(out, "darkMode:       %t\n", prefs.DarkMode)
			fmt.Fprintf(out, "biometricAuth:  %t\n", prefs.BiometricAuth)
			return nil
		},
	}

	cmd.Flags().BoolVar(&notifications, "notifications", true, "enable reminders")
	cmd.Flags().IntVar(&reminderDays, "reminder-days", 3, "days before renewal to remind")
	cmd.Flags().BoolVar(&darkMode, "dark-mode", false, "use the dark theme")
	cmd.Flags().BoolVar(&biometric, "biometric-auth", false, "require biometric unlock")
	return cmd
}

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Run the renewal digest once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := deps.Digest.RenewalDigest(cmd.Context())
			if d != nil {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Renewals between %s and %s:\n", d.From, d.To)
				printSubscriptions(out, d.Items, deps.Config.App.Currency)
				fmt.Fprintf(out, "Total: %s\n", d.Total.Display())
			}
			return err
		},
	}
}

// mutationError reports a change that was applied in memory but not saved.
func mutationError(w io.Writer, err error) error {
	if errors.Is(err, subscriptionsvc.ErrPersistence) {
		fmt.Fprintln(w, "warning: the change was applied but could not be saved")
	}
	return err
}
