// root.go — команды CLI: serve (по умолчанию) и namehash.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/resolver-module/internal/config"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/namehash"
)

// newRootCmd создаёт корневую команду resolver-module.
func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:     "resolver-module",
		Short:   "Resolver Module — реестр записей узлов с кэшем и атомарным multicall",
		Version: config.Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfgFile)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"YAML-файл конфигурации (по умолчанию RM_CONFIG_FILE или только окружение)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP-сервис",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfgFile)
		},
	}

	nh := &cobra.Command{
		Use:   "namehash <name>",
		Short: "Вычислить node для имени вида label.parent.tld",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := namehash.Of(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), node.Hex())
			return err
		},
	}

	root.AddCommand(serve, nh)
	return root
}
