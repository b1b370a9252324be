package fixture

import (
	"sync"

	"github.com/liuxd6825/quizsmoke/chromium"
	"github.com/liuxd6825/quizsmoke/common"
)

// PIDs records the browser processes launched for sessions so that
// teardown can be verified.
type PIDs struct {
	mu   sync.Mutex
	pids []int
}

// Register records the process of s when s owns one. It is a no-op on a
// nil receiver.
func (p *PIDs) Register(s common.Session) {
	if p == nil {
		return
	}
	po, ok := s.(common.ProcessOwner)
	if !ok || po.Pid() == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pids = append(p.pids, po.Pid())
}

// All returns the recorded pids.
func (p *PIDs) All() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.pids...)
}

// Running returns the recorded pids whose process still exists.
func (p *PIDs) Running() []int {
	var out []int
	for _, pid := range p.All() {
		if chromium.ProcessRunning(pid) {
			out = append(out, pid)
		}
	}
	return out
}
