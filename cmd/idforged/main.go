// idforged 是基于模板的 ID 生成服务。
//
//	idforged serve --config ./config/idforged.yaml
//	idforged gen "ORD{TimeCount=20060102,,%s%04d}" -n 3
//	idforged types
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "idforged",
		Short:        "Template-driven ID generation service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/idforged.yaml", "config file path")

	load := func(ctx context.Context) (*appConfig, error) {
		dir, file := filepath.Split(configFile)
		if dir == "" {
			dir = "."
		}
		name := strings.TrimSuffix(file, filepath.Ext(file))
		return loadConfig(ctx, name, []string{dir})
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := load(ctx)
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}

	var count int
	genCmd := &cobra.Command{
		Use:   "gen <template>",
		Short: "Generate IDs from an ad-hoc template and print them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := idgen.Compile(args[0], nil)
			if err != nil {
				return err
			}
			defer g.Close()

			ids, err := g.GenerateBatch(cmd.Context(), count)
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return err
		},
	}
	genCmd.Flags().IntVarP(&count, "count", "n", 1, "number of IDs to generate")

	typesCmd := &cobra.Command{
		Use:   "types",
		Short: "List the built-in component types",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, typ := range idgen.Builtin().Types() {
				fmt.Fprintln(cmd.OutOrStdout(), typ)
			}
		},
	}

	root.AddCommand(serveCmd, genCmd, typesCmd)
	return root
}

func serve(ctx context.Context, cfg *appConfig) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			a.logger.Error("release resources failed", clog.Error(err))
		}
	}()

	srv, err := server.New(&cfg.Server, a.set,
		server.WithLogger(a.logger),
		server.WithMeter(a.meter),
	)
	if err != nil {
		return err
	}

	a.logger.Info("idforged starting", clog.Any("templates", a.set.Names()))
	return srv.Run(ctx)
}
