package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/couchbase/topogen/pkg/statestore"
	"github.com/spf13/cobra"
)

var inspectOpts struct {
	state string
	list  bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Shows a saved placement or lists the saved snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		out := cmd.OutOrStdout()

		if inspectOpts.list {
			snaps, err := e.store.List()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tINSTANCES\tCONFIG")
			for _, snap := range snaps {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.12s\n",
					snap.ID,
					snap.CreatedAt.Format(time.RFC3339),
					len(snap.Hosts.AllInstances()),
					snap.ConfigHash)
			}
			return tw.Flush()
		}

		snap, err := e.gen.Load(inspectOpts.state)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "snapshot %s (%s)\n", snap.ID, snap.CreatedAt.Format(time.RFC3339))
		r := e.renderer()
		if err := r.Tree(out, snap.Hosts); err != nil {
			return err
		}
		return r.Queues(out, snap.Hosts)
	},
}

func init() {
	flags := inspectCmd.Flags()
	flags.StringVar(&inspectOpts.state, "state", statestore.LatestRef, "id of the snapshot to show")
	flags.BoolVar(&inspectOpts.list, "list", false, "list the saved snapshots instead")
}
