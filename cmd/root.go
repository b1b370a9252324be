/*
 *
 * k6 - a next-generation load testing tool
 * Copyright (C) 2016 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package cmd implements the quizsmoke command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/quizsmoke/errext"
	"github.com/liuxd6825/quizsmoke/lib/consts"
)

// BannerColor is the color of the banner.
var BannerColor = color.New(color.FgCyan) //nolint:gochecknoglobals

// This is to keep all fields needed for the main/root quizsmoke command
type rootCommand struct {
	gs  *globalState
	cmd *cobra.Command
}

func newRootCommand(gs *globalState) *rootCommand {
	c := &rootCommand{gs: gs}
	c.cmd = &cobra.Command{
		Use:               "quizsmoke",
		Short:             "browser smoke tests for the quiz application",
		Long:              "\n" + consts.Banner(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
		Version:           consts.FullVersion(),
	}

	c.cmd.PersistentFlags().AddFlagSet(rootCmdPersistentFlagSet(gs))
	c.cmd.SetOut(gs.stdout)
	c.cmd.SetErr(gs.stderr)
	c.cmd.AddCommand(
		getCmdRun(gs),
		getCmdServe(gs),
		getCmdInstall(gs),
		getCmdVersion(gs),
	)
	return c
}

func (c *rootCommand) persistentPreRunE(_ *cobra.Command, _ []string) error {
	if err := c.setupLoggers(); err != nil {
		return err
	}
	if c.gs.flags.noColor {
		c.gs.stdout.Writer = colorable.NewNonColorable(c.gs.stdout.Writer)
		c.gs.stderr.Writer = colorable.NewNonColorable(c.gs.stderr.Writer)
	}
	stdlog.SetOutput(c.gs.logger.Writer())
	c.gs.logger.Debugf("quizsmoke version: v%s", consts.FullVersion())
	return nil
}

func (c *rootCommand) execute() int {
	if err := c.cmd.Execute(); err != nil {
		exitCode := -1
		var ecerr errext.HasExitCode
		if errors.As(err, &ecerr) {
			exitCode = int(ecerr.ExitCode())
		}

		fields := logrus.Fields{}
		var herr errext.HasHint
		if errors.As(err, &herr) {
			fields["hint"] = herr.Hint()
		}
		c.gs.logger.WithFields(fields).Error(err)
		return exitCode
	}
	return 0
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	code := newRootCommand(newGlobalState(ctx)).execute()
	cancel()
	os.Exit(code)
}

func rootCmdPersistentFlagSet(gs *globalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.BoolVarP(&gs.flags.verbose, "verbose", "v", gs.defaultFlags.verbose, "enable verbose logging")
	flags.BoolVar(&gs.flags.noColor, "no-color", gs.flags.noColor, "disable colored output")
	flags.StringVar(&gs.flags.logOutput, "log-output", gs.flags.logOutput,
		"change the output for quizsmoke logs, possible values are stderr,stdout,none")
	flags.Lookup("log-output").DefValue = gs.defaultFlags.logOutput
	flags.StringVar(&gs.flags.logFormat, "log-format", gs.flags.logFormat,
		"log output format, possible values are text,json,raw")
	flags.StringVarP(&gs.flags.configFilePath, "config", "c", gs.flags.configFilePath, "YAML config file")
	flags.Lookup("config").DefValue = gs.defaultFlags.configFilePath
	must(cobra.MarkFlagFilename(flags, "config"))
	return flags
}

// RawFormatter it does nothing with the message just prints it
type RawFormatter struct{}

// Format renders a single log entry
func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

func (c *rootCommand) setupLoggers() error {
	if c.gs.flags.verbose {
		c.gs.logger.SetLevel(logrus.DebugLevel)
	}

	switch c.gs.flags.logOutput {
	case "stderr":
		c.gs.logger.SetOutput(c.gs.stderr)
	case "stdout":
		c.gs.logger.SetOutput(c.gs.stdout)
	case "none":
		c.gs.logger.SetOutput(io.Discard)
	default:
		return fmt.Errorf("unsupported log output '%s'", c.gs.flags.logOutput)
	}

	switch c.gs.flags.logFormat {
	case "raw":
		c.gs.logger.SetFormatter(&RawFormatter{})
		c.gs.logger.Debug("Logger format: RAW")
	case "json":
		c.gs.logger.SetFormatter(&logrus.JSONFormatter{})
		c.gs.logger.Debug("Logger format: JSON")
	default:
		c.gs.logger.SetFormatter(&logrus.TextFormatter{
			ForceColors: c.gs.stderr.isTTY, DisableColors: c.gs.flags.noColor,
		})
		c.gs.logger.Debug("Logger format: TEXT")
	}
	return nil
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
