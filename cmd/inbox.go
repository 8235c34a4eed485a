package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/shopfront/internal/inbox"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Read submissions received by the local form relay",
	Long: `The development server stores every contact form submission it relays in
an SQLite database (inbox.path). These commands read and prune it.

Examples:
  shopfront inbox list              # Newest 50 submissions
  shopfront inbox list --spam       # Include submissions flagged as spam
  shopfront inbox show <id>         # Full message
  shopfront inbox delete <id>       # Remove a submission`,
}

var (
	inboxLimit      int
	inboxSpam       bool
	inboxOutput     *OutputFlags
	inboxShowOutput *OutputFlags
)

func init() {
	rootCmd.AddCommand(inboxCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInbox(cmd, func(ctx context.Context, store *inbox.Store) error {
				return listSubmissions(ctx, cmd.OutOrStdout(), store)
			})
		},
	}
	listCmd.Flags().IntVarP(&inboxLimit, "limit", "n", 50, "Maximum number of submissions")
	listCmd.Flags().BoolVar(&inboxSpam, "spam", false, "Include submissions flagged as spam")
	inboxOutput = AddOutputFlags(listCmd)

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInbox(cmd, func(ctx context.Context, store *inbox.Store) error {
				return showSubmission(ctx, cmd.OutOrStdout(), store, args[0])
			})
		},
	}
	inboxShowOutput = AddOutputFlags(showCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete submissions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInbox(cmd, func(ctx context.Context, store *inbox.Store) error {
				return deleteSubmissions(ctx, cmd.OutOrStdout(), store, args)
			})
		},
	}

	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInbox(cmd, func(ctx context.Context, store *inbox.Store) error {
				n, err := store.Count(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}

	inboxCmd.AddCommand(listCmd, showCmd, deleteCmd, countCmd)
}

func withInbox(cmd *cobra.Command, fn func(context.Context, *inbox.Store) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := inbox.Open(cmd.Context(), cfg.Inbox.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(cmd.Context(), store)
}

func listSubmissions(ctx context.Context, out io.Writer, store *inbox.Store) error {
	subs, err := store.List(ctx, inbox.ListOptions{Limit: inboxLimit, IncludeSpam: inboxSpam})
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []inbox.Submission{}
	}

	return inboxOutput.Print(out, subs, func(w io.Writer) {
		if len(subs) == 0 {
			fmt.Fprintln(w, "Inbox is empty")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRECEIVED\tNAME\tEMAIL\tSERVICE\tMESSAGE")
		for _, sub := range subs {
			name := sub.Name
			if sub.Spam {
				name += " [spam]"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				sub.ID[:8], sub.ReceivedAt.Local().Format(time.DateTime), name, sub.Email,
				sub.Service, preview(sub.Message, 40))
		}
		tw.Flush()
	})
}

func showSubmission(ctx context.Context, out io.Writer, store *inbox.Store, id string) error {
	sub, err := resolveSubmission(ctx, store, id)
	if err != nil {
		return err
	}

	return inboxShowOutput.Print(out, sub, func(w io.Writer) {
		fmt.Fprintf(w, "ID:       %s\n", sub.ID)
		fmt.Fprintf(w, "Received: %s\n", sub.ReceivedAt.Local().Format(time.RFC1123))
		fmt.Fprintf(w, "From:     %s <%s>\n", sub.Name, sub.Email)
		if sub.Service != "" {
			fmt.Fprintf(w, "Service:  %s\n", sub.Service)
		}
		if a := sub.Attribution; !a.IsZero() {
			fmt.Fprintf(w, "Campaign: source=%s medium=%s campaign=%s term=%s content=%s\n",
				a.Source, a.Medium, a.Campaign, a.Term, a.Content)
		}
		if sub.RemoteAddr != "" {
			fmt.Fprintf(w, "Client:   %s\n", sub.RemoteAddr)
		}
		fmt.Fprintf(w, "\n%s\n", sub.Message)
	})
}

func deleteSubmissions(ctx context.Context, out io.Writer, store *inbox.Store, ids []string) error {
	for _, id := range ids {
		sub, err := resolveSubmission(ctx, store, id)
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, sub.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %s\n", sub.ID)
	}
	return nil
}

// resolveSubmission accepts a full ID or the 8 character prefix printed by list.
func resolveSubmission(ctx context.Context, store *inbox.Store, id string) (inbox.Submission, error) {
	sub, err := store.Get(ctx, id)
	if err == nil || !errors.Is(err, inbox.ErrNotFound) || len(id) >= 36 {
		return sub, err
	}

	subs, err := store.List(ctx, inbox.ListOptions{Limit: 1000, IncludeSpam: true})
	if err != nil {
		return inbox.Submission{}, err
	}
	var matches []inbox.Submission
	for _, s := range subs {
		if strings.HasPrefix(s.ID, id) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return inbox.Submission{}, fmt.Errorf("%w: %s", inbox.ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return inbox.Submission{}, fmt.Errorf("id prefix %q matches %d submissions", id, len(matches))
	}
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
