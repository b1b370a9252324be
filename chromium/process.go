package chromium

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ps "github.com/mitchellh/go-ps"
)

// ProcessRunning reports whether a process with the given pid exists.
func ProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := ps.FindProcess(pid)
	return err == nil && p != nil
}

// Children returns the pids of the direct children of ppid, lowest first.
func Children(ppid int) ([]int, error) {
	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	var out []int
	for _, p := range procs {
		if p.PPid() == ppid {
			out = append(out, p.Pid())
		}
	}
	sort.Ints(out)
	return out, nil
}

// spawnMu serializes TrackSpawn so that two starts never see each other's
// children.
var spawnMu sync.Mutex

// TrackSpawn runs start and returns the pid of the child process named
// name that start spawned from ppid. The pid is zero when no such child
// appeared, or when more than one did.
func TrackSpawn(ppid int, name string, start func() error) (int, error) {
	spawnMu.Lock()
	defer spawnMu.Unlock()

	before, err := namedChildren(ppid, name)
	if err != nil {
		return 0, err
	}
	if err := start(); err != nil {
		return 0, err
	}
	after, err := namedChildren(ppid, name)
	if err != nil {
		return 0, nil //nolint:nilerr
	}
	var spawned []int
	for pid := range after {
		if !before[pid] {
			spawned = append(spawned, pid)
		}
	}
	if len(spawned) != 1 {
		return 0, nil
	}
	return spawned[0], nil
}

func namedChildren(ppid int, name string) (map[int]bool, error) {
	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	out := make(map[int]bool)
	for _, p := range procs {
		if p.PPid() == ppid && ExecutableMatches(p.Executable(), name) {
			out[p.Pid()] = true
		}
	}
	return out, nil
}

// ExecutableMatches reports whether the process executable exe runs the
// binary at path. Linux truncates executable names to 15 bytes.
func ExecutableMatches(exe, path string) bool {
	name := strings.TrimSuffix(filepath.Base(path), ".exe")
	exe = strings.TrimSuffix(exe, ".exe")
	if exe == name {
		return true
	}
	return len(exe) == 15 && strings.HasPrefix(name, exe)
}

// FirstChild returns the lowest pid among the children of ppid, or zero.
func FirstChild(ppid int) int {
	if ppid <= 0 {
		return 0
	}
	children, err := Children(ppid)
	if err != nil || len(children) == 0 {
		return 0
	}
	return children[0]
}
