// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/pingcap/sqlexec/lib/util/cmd"
	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/pkg/sctx"
	"github.com/pingcap/sqlexec/pkg/server"
	"github.com/pingcap/sqlexec/pkg/util/versioninfo"
	"github.com/spf13/cobra"
)

func main() {
	cmd.RunRootCommand(newRootCmd())
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sqlexec",
		Short:        "run SQL statements on a MySQL server and serve the engine status",
		Version:      fmt.Sprintf("%s, commit %s", versioninfo.Version, versioninfo.GitHash),
		SilenceUsage: true,
	}
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	sctx := &sctx.Context{}
	rootCmd.PersistentFlags().StringVar(&sctx.ConfigFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&sctx.Overlay.Database.Host, "host", "", "database host")
	rootCmd.PersistentFlags().IntVar(&sctx.Overlay.Database.Port, "port", 0, "database port")
	rootCmd.PersistentFlags().StringVar(&sctx.Overlay.Database.Socket, "socket", "", "unix socket of the database")
	rootCmd.PersistentFlags().StringVarP(&sctx.Overlay.Database.User, "user", "u", "", "database user")
	rootCmd.PersistentFlags().StringVarP(&sctx.Overlay.Database.Schema, "schema", "D", "", "default schema")
	askPassword := rootCmd.PersistentFlags().Bool("ask-password", false, "read the password from the terminal")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if !*askPassword {
			return nil
		}
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		sctx.Overlay.Database.Password = password
		return nil
	}

	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		srv, err := server.NewServer(cmd.Context(), sctx)
		if err != nil {
			return errors.Wrapf(err, "fail to create server")
		}

		<-cmd.Context().Done()
		srv.PreClose()
		if e := srv.Close(); e != nil {
			err = errors.Wrapf(e, "shutdown with errors")
		}
		return err
	}

	rootCmd.AddCommand(newQueryCmd(sctx))
	return rootCmd
}
