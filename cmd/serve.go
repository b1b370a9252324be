package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/liuxd6825/quizsmoke/errext"
	"github.com/liuxd6825/quizsmoke/errext/exitcodes"
	"github.com/liuxd6825/quizsmoke/log"
	"github.com/liuxd6825/quizsmoke/metrics"
	"github.com/liuxd6825/quizsmoke/quizsite"
)

const shutdownTimeout = 5 * time.Second

// cmdServe handles the `quizsmoke serve` sub-command
type cmdServe struct {
	gs      *globalState
	address string
	seed    int64

	// ready receives the listening address, used by tests.
	ready func(addr string)
}

// handler routes /metrics to the registry and everything else to the
// quiz site.
func (c *cmdServe) handler(logger *log.Logger) http.Handler {
	registry := metrics.NewRegistry()
	opts := []quizsite.Option{
		quizsite.WithLogger(logger),
		quizsite.WithRegisterer(registry.Registerer()),
	}
	if c.seed != 0 {
		opts = append(opts, quizsite.WithSeed(c.seed))
	}

	r := chi.NewRouter()
	r.Handle("/metrics", registry.Handler())
	r.Handle("/*", quizsite.NewServer(quizsite.DefaultBank(), opts...))
	return r
}

func (c *cmdServe) run(_ *cobra.Command, _ []string) error {
	logger, err := log.NewFromEnv(c.gs.logger, "", c.gs.lookupEnv)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	l, err := net.Listen("tcp", c.address)
	if err != nil {
		return errext.WithExitCodeIfNone(fmt.Errorf("listening on %s: %w", c.address, err), exitcodes.CannotServe)
	}
	srv := &http.Server{
		Handler:           c.handler(logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := c.gs.notifyContext(c.gs.ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		logger.Infof("QuizSite", "shutting down")
		return srv.Shutdown(sctx)
	})

	logger.Infof("QuizSite", "serving the quiz site on http://%s/", l.Addr())
	if c.ready != nil {
		c.ready(l.Addr().String())
	}
	if err := g.Wait(); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.CannotServe)
	}
	return nil
}

func getCmdServe(gs *globalState) *cobra.Command {
	c := &cmdServe{gs: gs}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bundled quiz site",
		Long: `Serve the bundled quiz site, a stand-in for the quiz application, and
its Prometheus metrics on /metrics. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	serveCmd.Flags().StringVarP(&c.address, "address", "a", "localhost:8000", "address to listen on")
	serveCmd.Flags().Int64Var(&c.seed, "seed", 0, "seed of the question shuffle, random when 0")
	return serveCmd
}
