package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liuxd6825/quizsmoke/driver/pw"
	"github.com/liuxd6825/quizsmoke/env"
)

const defaultConfigFileName = "quizsmoke.yaml"

// globalFlags holds the persistent flags shared by every sub-command.
type globalFlags struct {
	configFilePath string
	noColor        bool
	logOutput      string
	logFormat      string
	verbose        bool
}

// globalState carries everything the commands touch in the outside world,
// so tests can swap it.
type globalState struct {
	ctx context.Context

	fs             afero.Fs
	stdout, stderr *consoleWriter
	logger         *logrus.Logger

	lookupEnv    env.LookupFunc
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)

	installPlaywright func(verbose bool) error

	defaultFlags, flags globalFlags
}

func newGlobalState(ctx context.Context) *globalState {
	outMutex := &sync.Mutex{}
	stdoutTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	stderrTTY := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	stdout := &consoleWriter{colorable.NewColorableStdout(), stdoutTTY, outMutex}
	stderr := &consoleWriter{colorable.NewColorableStderr(), stderrTTY, outMutex}

	logger := &logrus.Logger{
		Out:       stderr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}

	defaultFlags := globalFlags{
		configFilePath: defaultConfigFileName,
		logOutput:      "stderr",
	}

	return &globalState{
		ctx:          ctx,
		fs:           afero.NewOsFs(),
		stdout:       stdout,
		stderr:       stderr,
		logger:       logger,
		lookupEnv:    env.Lookup,
		signalNotify: signal.Notify,
		signalStop:   signal.Stop,

		installPlaywright: pw.Install,

		defaultFlags: defaultFlags,
		flags:        consolidateGlobalFlags(defaultFlags, env.Lookup),
	}
}

func consolidateGlobalFlags(defaultFlags globalFlags, lookup env.LookupFunc) globalFlags {
	result := defaultFlags
	if val, ok := lookup(env.Config); ok {
		result.configFilePath = val
	}
	if val, ok := lookup("QUIZSMOKE_LOG_OUTPUT"); ok {
		result.logOutput = val
	}
	if val, ok := lookup("QUIZSMOKE_LOG_FORMAT"); ok {
		result.logFormat = val
	}
	// https://no-color.org/: even an empty value disables colors.
	if _, ok := lookup("NO_COLOR"); ok {
		result.noColor = true
	}
	return result
}

// notifyContext returns a context canceled by the first SIGINT or SIGTERM.
func (gs *globalState) notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigC := make(chan os.Signal, 1)
	gs.signalNotify(sigC, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigC:
			gs.logger.WithField("sig", sig).Debug("Stopping on signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		gs.signalStop(sigC)
		cancel()
	}
}

type consoleWriter struct {
	io.Writer
	isTTY bool
	mutex *sync.Mutex
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.Writer.Write(p)
}
