package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/Joelisking/projectx-client/marketplace"
	"github.com/spf13/cobra"
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Search marketplace listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		f := marketplace.ListingFilter{}
		f.Category, _ = flags.GetStringSlice("category")
		f.Campus, _ = flags.GetStringSlice("campus")
		f.Condition, _ = flags.GetStringSlice("condition")
		f.Status, _ = flags.GetStringSlice("status")
		f.Search, _ = flags.GetString("search")
		f.Ordering, _ = flags.GetString("ordering")
		f.Page, _ = flags.GetInt("page")

		page, err := current.market.ListListings(cmd.Context(), f)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPRICE\tCONDITION\tSTATUS")
		for _, l := range page.Results {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n", l.ID, l.Title, l.PriceValue(), l.Condition, l.Status)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d listings\n", len(page.Results), page.Count)
		if n, err := current.market.UnreadNotificationCount(cmd.Context()); err == nil && n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "You have %d unread notifications.\n", n)
		}
		return nil
	},
}

func init() {
	flags := listingsCmd.Flags()
	flags.StringSlice("category", nil, "category slug, repeatable")
	flags.StringSlice("campus", nil, "campus id, repeatable")
	flags.StringSlice("condition", nil, "new, like_new, good, fair or poor; repeatable")
	flags.StringSlice("status", nil, "active, sold, expired; repeatable")
	flags.String("search", "", "search term")
	flags.String("ordering", "", "sort field, prefix with - for descending")
	flags.Int("page", 0, "result page")
}
