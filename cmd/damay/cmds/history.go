package cmds

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/damay/pkg/persistence/chatstore"
	"github.com/go-go-golems/damay/pkg/session"
)

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the stored conversation",
	}
	cmd.AddCommand(newHistoryShowCommand(a), newHistoryClearCommand(a))
	return cmd
}

func newHistoryShowCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored conversation log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := chatstore.Open(cmd.Context(), a.settings.Store)
			if err != nil {
				return errors.Wrap(err, "open session store")
			}
			defer closeStore()

			msgs, ok, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if msgs == nil {
					msgs = []session.Message{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(msgs)
			}
			if !ok || len(msgs) == 0 {
				fmt.Fprintln(out, "no stored conversation")
				return nil
			}
			for _, msg := range msgs {
				fmt.Fprintf(out, "[%s] %s\n", msg.Role, msg.Content)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the log as JSON")
	return cmd
}

func newHistoryClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := chatstore.Open(cmd.Context(), a.settings.Store)
			if err != nil {
				return errors.Wrap(err, "open session store")
			}
			defer closeStore()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "conversation cleared")
			return nil
		},
	}
}
