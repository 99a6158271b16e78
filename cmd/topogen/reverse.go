package main

import (
	"github.com/couchbase/topogen/pkg/statestore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reverseOpts struct {
	state  string
	output string
}

var reverseCmd = &cobra.Command{
	Use:   "reverse",
	Short: "Recovers a cluster file from a saved placement",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		snap, err := e.gen.Load(reverseOpts.state)
		if err != nil {
			return err
		}

		cluster, err := e.gen.Reverse(snap)
		if err != nil {
			return err
		}

		data, err := cluster.Marshal()
		if err != nil {
			return errors.Wrap(err, "failed to encode cluster")
		}
		if err := writeOutput(cmd.OutOrStdout(), reverseOpts.output, data); err != nil {
			return err
		}

		if reverseOpts.output != "" {
			e.logger.Info("wrote cluster file", zap.String("path", reverseOpts.output))
		}
		return nil
	},
}

func init() {
	flags := reverseCmd.Flags()
	flags.StringVar(&reverseOpts.state, "state", statestore.LatestRef, "id of the snapshot to reverse")
	flags.StringVarP(&reverseOpts.output, "output", "o", "", "where to write the cluster file, empty for stdout")
}
