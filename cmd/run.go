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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/config"
	"github.com/liuxd6825/quizsmoke/driver"
	"github.com/liuxd6825/quizsmoke/errext"
	"github.com/liuxd6825/quizsmoke/errext/exitcodes"
	"github.com/liuxd6825/quizsmoke/fixture"
	"github.com/liuxd6825/quizsmoke/log"
	"github.com/liuxd6825/quizsmoke/metrics"
	"github.com/liuxd6825/quizsmoke/quizsite"
	"github.com/liuxd6825/quizsmoke/report"
	"github.com/liuxd6825/quizsmoke/scenario"
	"github.com/liuxd6825/quizsmoke/trace"
)

// cmdRun handles the `quizsmoke run` sub-command
type cmdRun struct {
	gs *globalState
}

func (c *cmdRun) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringP("backend", "b", config.DefaultBackend,
		"automation backend, one of "+strings.Join(driver.Names(), ", "))
	flags.String("base-url", config.DefaultBaseURL, "root URL of the quiz application")
	flags.Bool("local-site", false, "serve the bundled quiz site and run against it")
	flags.Bool("shared", false, "share one session between all scenarios")
	flags.Bool("headless", true, "run the browser without a window")
	flags.Duration("timeout", common.DefaultTimeout, "launch, navigation and action timeout")
	flags.Duration("expect-timeout", common.DefaultExpectTimeout, "timeout of polled expectations")
	flags.Duration("slow-mo", 0, "delay between browser actions")
	flags.String("summary-export", "", "write the JSON summary to this file")
	flags.String("metrics-file", "", "write Prometheus metrics to this file")
	flags.String("traces-output", "none", "traces output, none or otel[=endpoint][,proto=grpc|http][,header.K=V]")
	return flags
}

func (c *cmdRun) flagConfig(flags *pflag.FlagSet) config.Config {
	return config.Config{
		Backend:       getNullString(flags, "backend"),
		BaseURL:       getNullString(flags, "base-url"),
		Shared:        getNullBool(flags, "shared"),
		Headless:      getNullBool(flags, "headless"),
		Timeout:       getNullDuration(flags, "timeout"),
		ExpectTimeout: getNullDuration(flags, "expect-timeout"),
		SlowMo:        getNullDuration(flags, "slow-mo"),
		SummaryExport: getNullString(flags, "summary-export"),
		MetricsFile:   getNullString(flags, "metrics-file"),
		TracesOutput:  getNullString(flags, "traces-output"),
	}
}

func (c *cmdRun) run(cmd *cobra.Command, args []string) error {
	startedAt := time.Now()
	runID := report.NewRunID()

	configRequired := cmd.Flags().Changed("config")
	if _, ok := c.gs.lookupEnv("QUIZSMOKE_CONFIG"); ok {
		configRequired = true
	}
	conf, err := config.Consolidate(c.gs.fs, c.flagConfig(cmd.Flags()), c.gs.flags.configFilePath, configRequired, c.gs.lookupEnv)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	if err := conf.Validate(); err != nil {
		return errext.WithExitCodeIfNone(
			errext.WithHint(err, "check the flags, QUIZSMOKE_* variables and config file"),
			exitcodes.InvalidConfig)
	}
	scenarios, err := scenario.Select(scenario.Quiz(), args...)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	logger, err := log.NewFromEnv(c.gs.logger, runID, c.gs.lookupEnv)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	ctx, cancel := c.gs.notifyContext(c.gs.ctx)
	defer cancel()

	baseURL := conf.BaseURL.String
	if local, _ := cmd.Flags().GetBool("local-site"); local {
		stop, addr, err := startLocalSite(logger)
		if err != nil {
			return errext.WithExitCodeIfNone(err, exitcodes.CannotServe)
		}
		defer stop()
		baseURL = "http://" + addr + "/"
	}

	tp, err := trace.TracerProviderFromConfigLine(ctx, conf.TracesOutput.String)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if serr := tp.Shutdown(sctx); serr != nil {
			logger.Warnf("Traces", "shutting down tracer provider: %v", serr)
		}
	}()
	metadata, err := trace.ParseMetadata(c.gs.lookupEnv)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	metadata["run_id"] = runID

	registry := metrics.NewRegistry()
	prov, err := driver.New(conf.Backend.String, logger, c.gs.lookupEnv)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	runner, err := scenario.NewRunner(baseURL, prov.Name(),
		scenario.WithLogger(logger),
		scenario.WithTracer(trace.NewTracer(tp, metadata)),
		scenario.WithMetrics(registry),
		scenario.WithTimeouts(conf.TimeoutSettings()),
	)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	printBanner(c.gs)
	pids := &fixture.PIDs{}
	results, teardownErr := runner.RunAll(ctx, prov, conf.LaunchOptions(), scenarios, conf.Shared.Bool, pids)
	if teardownErr != nil {
		logger.Warnf("Run", "teardown: %v", teardownErr)
	}
	if running := pids.Running(); len(running) > 0 {
		logger.Warnf("Run", "browser processes still running after teardown: %v", running)
	}

	summary := report.NewSummary(report.Meta{
		RunID:     runID,
		Backend:   prov.Name(),
		BaseURL:   baseURL,
		Shared:    conf.Shared.Bool,
		StartedAt: startedAt,
	}, results)
	if err := summary.WriteText(c.gs.stdout, c.gs.flags.noColor); err != nil {
		return err
	}
	if path := conf.SummaryExport.String; path != "" {
		if err := summary.Export(c.gs.fs, path); err != nil {
			return err
		}
	}
	if path := conf.MetricsFile.String; path != "" {
		if err := registry.WriteTextfile(c.gs.fs, path); err != nil {
			return fmt.Errorf("writing metrics file: %w", err)
		}
	}

	switch {
	case ctx.Err() != nil && c.gs.ctx.Err() == nil:
		return errext.WithExitCodeIfNone(errors.New("run aborted by signal"), exitcodes.ExternalAbort)
	case summary.Passed == 0 && summary.Kinds[common.ProvisionFailure.String()] == summary.Failed && summary.Failed > 0:
		return errext.WithExitCodeIfNone(
			errext.WithHint(errors.New("no session could be provisioned"),
				"install a browser with `quizsmoke install` or set "+driver.RemoteURLKey(prov.Name())),
			exitcodes.CannotProvision)
	case !summary.OK():
		return errext.WithExitCodeIfNone(
			fmt.Errorf("%d of %d scenarios have failed", summary.Failed, len(results)),
			exitcodes.ScenariosHaveFailed)
	}
	return nil
}

// startLocalSite serves the bundled quiz site on a free loopback port.
func startLocalSite(logger *log.Logger) (func(), string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", fmt.Errorf("listening for the local quiz site: %w", err)
	}
	srv := &http.Server{
		Handler:           quizsite.NewServer(quizsite.DefaultBank(), quizsite.WithLogger(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("QuizSite", "serving: %v", err)
		}
	}()
	logger.Debugf("QuizSite", "serving on %s", l.Addr())
	return func() { _ = srv.Close() }, l.Addr().String(), nil
}

func getCmdRun(gs *globalState) *cobra.Command {
	c := &cmdRun{gs: gs}

	runCmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run the quiz smoke scenarios",
		Long: `Run the quiz smoke scenarios against the quiz application.

Without arguments every built-in scenario runs: ` + strings.Join(scenario.Names(scenario.Quiz()), ", ") + `.`,
		Example: `
  # Run every scenario with the default backend.
  quizsmoke run

  # Run two scenarios with Selenium and one shared session.
  quizsmoke run --backend selenium --shared has-title quiz-question

  # Run against the bundled quiz site and export a JSON summary.
  quizsmoke run --local-site --summary-export summary.json`[1:],
		RunE: c.run,
	}
	runCmd.Flags().SortFlags = false
	runCmd.Flags().AddFlagSet(c.flagSet())
	return runCmd
}
