package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/engine"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <template>...",
	Short: "Render one or more templates",
	Long: `Renders each template file with the given data and writes the output to
stdout. Several templates are rendered concurrently and printed in argument
order. With --watch the templates are rendered again whenever a template or
the data file changes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		opts, err := renderOptionsFrom(cmd)
		if err != nil {
			return err
		}

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			return a.watch(cmd.Context(), args, opts, cmd.OutOrStdout())
		}
		return a.renderFiles(cmd.Context(), args, opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("data", "d", "", "YAML or JSON file with template variables")
	renderCmd.Flags().StringArrayP("set", "s", nil, "set a variable (name=value), repeatable")
	renderCmd.Flags().BoolP("watch", "w", false, "render again when a template or the data file changes")
}

type renderOptions struct {
	dataPath string
	sets     map[string]any
}

func renderOptionsFrom(cmd *cobra.Command) (renderOptions, error) {
	dataPath, _ := cmd.Flags().GetString("data")
	pairs, _ := cmd.Flags().GetStringArray("set")
	sets, err := parseAssignments(pairs)
	if err != nil {
		return renderOptions{}, err
	}
	return renderOptions{dataPath: dataPath, sets: sets}, nil
}

// vars loads the data file and applies --set overrides on top.
func (o renderOptions) vars() (map[string]any, error) {
	vars, err := loadData(o.dataPath)
	if err != nil {
		return nil, err
	}
	for k, v := range o.sets {
		vars[k] = v
	}
	return vars, nil
}

// loadTemplate reads and validates one template file. Warnings are logged.
func (a *app) loadTemplate(path string) (*schema.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tpl, result, err := a.validator.Load(name, raw)
	for _, w := range result.Warnings {
		a.logger.Warn("template warning", slog.String("template", path),
			slog.String("path", w.Path), slog.String("message", w.Message))
	}
	if err != nil {
		for _, e := range result.Errors {
			a.logger.Error("template error", slog.String("template", path),
				slog.String("path", e.Path), slog.String("message", e.Message))
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tpl, nil
}

func (a *app) renderFiles(ctx context.Context, paths []string, opts renderOptions, out io.Writer) error {
	vars, err := opts.vars()
	if err != nil {
		return err
	}

	if len(paths) == 1 {
		tpl, err := a.loadTemplate(paths[0])
		if err != nil {
			return err
		}
		bw := bufio.NewWriter(out)
		renderErr := a.driver.Render(ctx, tpl, scope.New(vars), action.NewTextWriter(bw))
		if err := bw.Flush(); err != nil {
			return err
		}
		return renderErr
	}

	jobs := make([]engine.Job, 0, len(paths))
	for _, p := range paths {
		tpl, err := a.loadTemplate(p)
		if err != nil {
			return err
		}
		jobs = append(jobs, engine.Job{Template: tpl, Vars: copyVars(vars)})
	}

	results, err := a.driver.RenderAll(ctx, jobs, a.cfg.Concurrency)
	if err != nil {
		return err
	}

	var failed int
	for i, r := range results {
		if _, err := out.Write(r.Output); err != nil {
			return err
		}
		if r.Err != nil {
			failed++
			a.logger.Error("render failed", slog.String("template", paths[i]), slog.Any("error", r.Err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(results))
	}
	return nil
}

// copyVars gives each job its own top-level map.
func copyVars(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
