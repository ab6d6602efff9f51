package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/repository"
	"github.com/FACorreiaa/subscription-radar/pkg/money"
)

func printSubscriptions(w io.Writer, subs []*repository.Subscription, currency string) {
	if len(subs) == 0 {
		fmt.Fprintln(w, "No subscriptions found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tNEXT PAYMENT\tSTATUS")
	for _, s := range subs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.Name,
			s.Category,
			money.NewFromDecimal(s.Price, currency).Display(),
			s.NextPayment,
			s.Status,
		)
	}
}

func printSubscription(w io.Writer, s *repository.Subscription, currency string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "ID:\t%s\n", s.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", s.Name)
	fmt.Fprintf(tw, "Category:\t%s\n", s.Category)
	fmt.Fprintf(tw, "Price:\t%s\n", money.NewFromDecimal(s.Price, currency).Display())
	fmt.Fprintf(tw, "Next payment:\t%s\n", s.NextPayment)
	fmt.Fprintf(tw, "Status:\t%s\n", s.Status)
	fmt.Fprintf(tw, "Payments:\t%d\n", len(s.PaymentHistory))
	fmt.Fprintf(tw, "Reminders:\t%d\n", len(s.ReminderHandles))
}
