package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/couchbase/topogen/pkg/app_config"
	"github.com/couchbase/topogen/pkg/clusterconfig"
	"github.com/couchbase/topogen/pkg/generator"
	"github.com/couchbase/topogen/utils/latestonlychannel"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var buildOpts struct {
	source      string
	output      string
	watch       bool
	exportState bool
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Places a cluster from scratch and writes its Ansible inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cluster, err := clusterconfig.Load(buildOpts.source)
		if err != nil {
			return err
		}

		result, err := e.gen.Build(ctx, cluster)
		if err != nil {
			return err
		}
		if err := e.emit(cmd.OutOrStdout(), result, buildOpts.output, buildOpts.exportState); err != nil {
			return err
		}

		if !buildOpts.watch {
			return nil
		}
		return e.watch(ctx, cmd, result)
	},
}

// watch rebuilds the inventory every time the cluster file changes.  Each
// rebuild is an upgrade of the previous one so instances stay where they
// are.
func (e *env) watch(ctx context.Context, cmd *cobra.Command, last *generator.Result) error {
	watcher, err := app_config.NewConfigWatcher[*clusterconfig.Cluster](buildOpts.source, clusterconfig.Parse, e.logger)
	if err != nil {
		return err
	}

	// a slow rebuild only ever picks up the newest file
	updates := make(chan *clusterconfig.Cluster)
	watcher.Subscribe(updates)
	clusters := latestonlychannel.Wrap(updates)

	defer func() {
		// no broadcast can be in flight once the watcher is closed
		_ = watcher.Close()
		close(updates)
	}()

	e.logger.Info("watching cluster file", zap.String("path", buildOpts.source))

	for {
		select {
		case <-ctx.Done():
			return nil
		case cluster := <-clusters:
			if cluster.Digest == last.Snapshot.ConfigHash {
				continue
			}

			result, err := e.gen.Upgrade(ctx, cluster, last.Snapshot)
			if err != nil {
				e.logger.Error("failed to rebuild placement", zap.Error(err))
				continue
			}
			if err := e.emit(cmd.OutOrStdout(), result, buildOpts.output, buildOpts.exportState); err != nil {
				e.logger.Error("failed to write placement", zap.Error(err))
				continue
			}
			last = result
		}
	}
}

func init() {
	flags := buildCmd.Flags()
	flags.StringVarP(&buildOpts.source, "source", "s", "cluster.yml", "the cluster file to place")
	flags.StringVarP(&buildOpts.output, "output", "o", "hosts.yml", "where to write the inventory, empty for stdout")
	flags.BoolVar(&buildOpts.watch, "watch", false, "rebuild whenever the cluster file changes")
	flags.BoolVar(&buildOpts.exportState, "export-state", true, "save a snapshot of the placement")
}
