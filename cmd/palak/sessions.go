package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/store"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			sessions, err := st.Sessions().List(sessionsLimit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tSTARTED\tFRAMES\tLEFT\tRIGHT")
			fmt.Fprintln(w, "--\t------\t-------\t------\t----\t-----")
			for _, sess := range sessions {
				counts, err := st.Events().CountBySession(sess.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
					sess.ID,
					sess.Source,
					sess.StartedAt.Local().Format("2006-01-02 15:04"),
					sess.Frames,
					counts[blink.EyeLeft],
					counts[blink.EyeRight],
				)
			}
			return w.Flush()
		})
	},
}

var sessionEventsCmd = &cobra.Command{
	Use:   "events <session-id>",
	Short: "Print the blink events of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			if _, err := st.Sessions().GetByID(args[0]); err != nil {
				return fmt.Errorf("session %s: %w", args[0], err)
			}
			rows, err := st.Events().ListBySession(args[0])
			if err != nil {
				return err
			}

			events := make([]blink.Event, 0, len(rows))
			for _, row := range rows {
				events = append(events, row.Event())
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		})
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			if err := st.Sessions().Delete(args[0]); err != nil {
				return fmt.Errorf("session %s: %w", args[0], err)
			}
			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		})
	},
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "maximum sessions to list (0 for all)")
	sessionsCmd.AddCommand(sessionEventsCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func withStore(fn func(*store.Store) error) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}
