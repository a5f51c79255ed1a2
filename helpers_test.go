package cecontainer

import (
	"context"
	"errors"
	"sync"
)

var (
	errBoom      = errors.New("boom")
	errStopBoom  = errors.New("stop boom")
	errCloseBoom = errors.New("close boom")
)

// recorder collects lifecycle calls in the order they happen.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) with(prefix string) []string {
	var out []string
	for _, e := range r.all() {
		if len(e) > len(prefix) && e[:len(prefix)] == prefix {
			out = append(out, e[len(prefix):])
		}
	}
	return out
}

// probe is a lifecycle-capable component reporting to a recorder.
type probe struct {
	name     string
	rec      *recorder
	startErr error
	stopErr  error
	closeErr error
}

func (p *probe) Start(context.Context) error {
	p.rec.add("start:" + p.name)
	return p.startErr
}

func (p *probe) Stop(context.Context) error {
	p.rec.add("stop:" + p.name)
	return p.stopErr
}

func (p *probe) Close() error {
	p.rec.add("close:" + p.name)
	return p.closeErr
}

// plain has no lifecycle hooks.
type plain struct {
	name string
}

func probeDesc(key Key, rec *recorder, requires ...Key) Descriptor {
	return Provide(key, func(Resolver) (any, error) {
		rec.add("new:" + string(key))
		return &probe{name: string(key), rec: rec}, nil
	}, requires...)
}

func failingProbeDesc(key Key, rec *recorder, p *probe, requires ...Key) Descriptor {
	return Provide(key, func(Resolver) (any, error) {
		rec.add("new:" + string(key))
		p.name = string(key)
		p.rec = rec
		return p, nil
	}, requires...)
}

// plansOf builds the four plans from fixed module sets.
func plansOf(modules map[LevelID][]Module) []LevelPlan {
	plans := make([]LevelPlan, 0, len(Levels))
	for _, id := range Levels {
		plans = append(plans, LevelPlan{ID: id, Modules: Modules(modules[id]...)})
	}
	return plans
}

// testLogger records messages per severity.
type testLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
	warns  []string
	debugs []string
}

func (l *testLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *testLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *testLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *testLogger) Debug(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, msg)
}

func (l *testLogger) errorMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}
