package main

import (
	"github.com/couchbase/topogen/pkg/clusterconfig"
	"github.com/couchbase/topogen/pkg/statestore"
	"github.com/spf13/cobra"
)

var upgradeOpts struct {
	source string
	old    string
	output string
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Places a changed cluster on top of a saved placement",
	Long: `Places a changed cluster on top of a saved placement.

Instances which still exist keep their host and ports.  New instances are
spread over the remaining capacity and removed ones are listed for expelling.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		cluster, err := clusterconfig.Load(upgradeOpts.source)
		if err != nil {
			return err
		}

		result, err := e.gen.UpgradeFrom(cmd.Context(), cluster, upgradeOpts.old)
		if err != nil {
			return err
		}
		return e.emit(cmd.OutOrStdout(), result, upgradeOpts.output, true)
	},
}

func init() {
	flags := upgradeCmd.Flags()
	flags.StringVarP(&upgradeOpts.source, "source", "s", "cluster.yml", "the changed cluster file")
	flags.StringVar(&upgradeOpts.old, "old", statestore.LatestRef, "id of the snapshot to upgrade")
	flags.StringVarP(&upgradeOpts.output, "output", "o", "hosts.yml", "where to write the inventory, empty for stdout")
}
