// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pingcap/sqlexec/lib/config"
	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/lib/util/logger"
	"github.com/pingcap/sqlexec/pkg/db"
	"github.com/pingcap/sqlexec/pkg/sctx"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newQueryCmd(sctx *sctx.Context) *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "run one statement and print the result as JSON",
		Args:  cobra.ExactArgs(1),
	}
	params := queryCmd.Flags().StringArray("param", nil, "statement parameter in the form of kind:value, e.g. i64:3")
	indent := queryCmd.Flags().Bool("indent", true, "whether indent the returned json")

	queryCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ReadConfigFile(sctx.ConfigFile)
		if err != nil {
			return err
		}
		if err := cfg.Merge(&sctx.Overlay); err != nil {
			return err
		}
		bound, err := parseParams(*params)
		if err != nil {
			return err
		}
		// Only warnings go to the terminal so that stdout stays valid JSON.
		cfg.Log.Level = "warn"
		cfg.Log.LogFile.Filename = ""
		lg, syncer, err := logger.BuildLogger(&cfg.Log)
		if err != nil {
			return err
		}
		defer func() {
			_ = syncer.Close()
		}()

		opts := db.OptionsFromConfig(&cfg.Engine)
		opts.ConnectorFactory = sctx.ConnectorFactory
		engine := db.NewDB(lg.Named("db"), opts)
		defer func() {
			_ = engine.Close()
		}()
		if err := engine.Connect(cmd.Context(), db.ConnParamsFromConfig(&cfg.Database)); err != nil {
			return err
		}

		rs := engine.Execute(cmd.Context(), args[0], bound)
		if err := printJSON(cmd, rs, *indent); err != nil {
			return err
		}
		return rs.Err()
	}
	return queryCmd
}

func parseParams(args []string) (db.Params, error) {
	params := make(db.Params, 0, len(args))
	for _, arg := range args {
		p, err := db.ParseParam(arg)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func printJSON(cmd *cobra.Command, v any, indent bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if indent {
		enc.SetIndent("", "  ")
	}
	return errors.WithStack(enc.Encode(v))
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--ask-password requires a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(password), nil
}
