package main

import (
	"io"
	"os"

	"github.com/couchbase/topogen/pkg/generator"
	"github.com/couchbase/topogen/pkg/render"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// writeOutput writes data to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// emit writes the inventory of result, saves its snapshot and prints what was
// placed.
func (e *env) emit(w io.Writer, result *generator.Result, output string, save bool) error {
	inv, err := result.Inventory()
	if err != nil {
		return err
	}
	data, err := inv.Marshal()
	if err != nil {
		return errors.Wrap(err, "failed to encode inventory")
	}

	if output == "" && !e.config.quiet {
		// the inventory owns stdout, the tree would corrupt it
		e.config.quiet = true
	}
	if err := writeOutput(w, output, data); err != nil {
		return err
	}
	if output != "" {
		e.logger.Info("wrote inventory", zap.String("path", output))
	}

	if save {
		if err := e.gen.Save(result); err != nil {
			return err
		}
	}

	if e.config.quiet {
		return nil
	}

	r := e.renderer()
	if len(result.Changes) > 0 {
		if err := r.Changes(w, result.Changes); err != nil {
			return err
		}
	}
	if err := r.Tree(w, result.Hosts); err != nil {
		return err
	}
	return r.Queues(w, result.Hosts)
}

func (e *env) renderer() *render.Renderer {
	return render.New(render.Options{Color: !color.NoColor})
}
