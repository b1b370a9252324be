/*
 *
 * k6 - a next-generation load testing tool
 * Copyright (C) 2020 Load Impact
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

// Package log implements the category logger used across quizsmoke and the
// logrus hooks the CLI can attach to it.
package log

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// fileHookBufferSize is a default size for the fileHook's loglines channel.
const fileHookBufferSize = 100

// FileHook writes log entries to a local file. Entries are buffered and
// flushed when the context given to FileHookFromConfigLine is done.
type FileHook struct {
	fallbackLogger logrus.FieldLogger
	loglines       chan []byte
	done           chan struct{}
	path           string
	w              io.WriteCloser
	bw             *bufio.Writer
	levels         []logrus.Level
}

// FileHookFromConfigLine returns a new FileHook from a `file=path[,level=lvl]` line.
func FileHookFromConfigLine(
	ctx context.Context, fallbackLogger logrus.FieldLogger, line string,
) (*FileHook, error) {
	hook := &FileHook{
		fallbackLogger: fallbackLogger,
		levels:         logrus.AllLevels,
		done:           make(chan struct{}),
	}

	if err := hook.parseArgs(line); err != nil {
		return nil, err
	}
	if err := hook.openFile(); err != nil {
		return nil, err
	}
	hook.loglines = hook.loop(ctx)

	return hook, nil
}

func (h *FileHook) parseArgs(line string) error {
	if !strings.HasPrefix(line, "file=") {
		return fmt.Errorf("logfile configuration should be in the form `file=path-to-local-file` but is `%s`", line)
	}
	for _, token := range strings.Split(line, ",") {
		kv := strings.SplitN(token, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("malformed logfile config token %q", token)
		}
		switch key, value := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1]); key {
		case "file":
			if value == "" {
				return fmt.Errorf("filepath must not be empty")
			}
			h.path = value
		case "level":
			levels, err := parseLevels(value)
			if err != nil {
				return err
			}
			h.levels = levels
		default:
			return fmt.Errorf("unknown logfile config key %s", key)
		}
	}

	return nil
}

func (h *FileHook) openFile() error {
	if _, err := os.Stat(filepath.Dir(h.path)); os.IsNotExist(err) {
		return fmt.Errorf("provided directory '%s' does not exist", filepath.Dir(h.path))
	}

	file, err := os.OpenFile(h.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open logfile %s: %w", h.path, err)
	}

	h.w = file
	h.bw = bufio.NewWriter(file)

	return nil
}

func (h *FileHook) loop(ctx context.Context) chan []byte {
	loglines := make(chan []byte, fileHookBufferSize)

	go func() {
		defer close(h.done)
		for {
			select {
			case entry := <-loglines:
				if _, err := h.bw.Write(entry); err != nil {
					h.fallbackLogger.Errorf("failed to write a log message to a logfile: %v", err)
				}
			case <-ctx.Done():
				h.drain(loglines)
				if err := h.bw.Flush(); err != nil {
					h.fallbackLogger.Errorf("failed to flush buffer: %v", err)
				}
				if err := h.w.Close(); err != nil {
					h.fallbackLogger.Errorf("failed to close logfile: %v", err)
				}
				return
			}
		}
	}()

	return loglines
}

// drain writes whatever is still queued without blocking.
func (h *FileHook) drain(loglines chan []byte) {
	for {
		select {
		case entry := <-loglines:
			_, _ = h.bw.Write(entry)
		default:
			return
		}
	}
}

// Done is closed once the hook has flushed and closed its file.
func (h *FileHook) Done() <-chan struct{} {
	return h.done
}

// Fire writes the log entry to the file.
func (h *FileHook) Fire(entry *logrus.Entry) error {
	message, err := entry.Bytes()
	if err != nil {
		return fmt.Errorf("failed to get a log entry bytes: %w", err)
	}

	select {
	case h.loglines <- message:
	case <-h.done:
	}
	return nil
}

// Levels returns configured log levels.
func (h *FileHook) Levels() []logrus.Level {
	return h.levels
}

var _ logrus.Hook = &FileHook{}
