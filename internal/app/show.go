package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"coverline/internal/storage"
)

// Show prints recent policy lifecycle events from the journal.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show events")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var events []storage.PolicyEventRecord
	if opts.PolicyID > 0 {
		events, err = store.ListPolicyEventsByPolicy(ctx, opts.PolicyID)
	} else {
		events, err = store.ListRecentPolicyEvents(ctx, opts.Limit)
	}
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "no events found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tEvent\tPolicy\tHolder\tStrategy\tCover (wei)\tAmount (wei)\tBlock")

	for _, event := range events {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%s\t%s\t%s\t%d\n",
			event.OccurredAt.UTC().Format(time.RFC3339),
			event.Event,
			event.PolicyID,
			event.Holder,
			event.Strategy,
			event.CoverWei.StringFixed(0),
			event.AmountWei.StringFixed(0),
			event.Block,
		)
	}

	writer.Flush()
	return nil
}
