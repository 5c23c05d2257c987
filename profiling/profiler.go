package profiling

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Enabled          bool
	LatencyThreshold time.Duration
	Duration         time.Duration
	Cooldown         time.Duration
	// Dir receives the profiles. Empty means os.TempDir().
	Dir string
}

// cpuProfiler abstracts CPU profiling so tests can mock it.
type cpuProfiler interface {
	StartCPUProfile(w io.Writer) error
	StopCPUProfile()
}

// pprofProfiler delegates to runtime/pprof.
type pprofProfiler struct{}

func (pprofProfiler) StartCPUProfile(w io.Writer) error { return pprof.StartCPUProfile(w) }

func (pprofProfiler) StopCPUProfile() { pprof.StopCPUProfile() }

// Profiler captures a CPU profile while a target scrapes slowly. Each target
// is profiled at most once per cooldown period. Only one profile runs at a
// time since the runtime supports a single CPU profile per process.
type Profiler struct {
	config        Config
	cpu           cpuProfiler
	running       sync.Mutex
	cooldowns     map[string]time.Time
	cooldownsLock sync.Mutex
}

func NewProfiler(config Config) *Profiler {
	if !config.Enabled {
		return nil
	}
	if config.Dir == "" {
		config.Dir = os.TempDir()
	}
	log.Println("Initializing on-demand profiler.")
	return &Profiler{
		config:    config,
		cpu:       pprofProfiler{},
		cooldowns: make(map[string]time.Time),
	}
}

// ProfileTargetIfSlow starts a profile in the background when a scrape of
// target took longer than the latency threshold. It is safe on a nil
// Profiler.
func (p *Profiler) ProfileTargetIfSlow(target string, duration time.Duration) {
	if p == nil || duration < p.config.LatencyThreshold {
		return
	}

	if p.isCoolingDown(target) {
		log.Printf("Profiler: Target '%s' is slow, but is in cooldown.", target)
		return
	}

	log.Printf("Profiler: Target '%s' exceeded latency threshold (%dms). Starting CPU profile.", target, duration.Milliseconds())
	p.setCooldown(target)
	go p.startProfiling(target)
}

func (p *Profiler) startProfiling(target string) {
	if !p.running.TryLock() {
		log.Printf("Profiler: Skipping profile for '%s', another profile is running.", target)
		return
	}
	defer p.running.Unlock()

	filename := filepath.Join(p.config.Dir, fmt.Sprintf("profile_%s_%d.pprof", sanitize(target), time.Now().Unix()))

	f, err := os.Create(filename)
	if err != nil {
		log.Printf("Profiler: Error creating profile file for '%s': %v", target, err)
		return
	}
	defer f.Close()

	if err := p.cpu.StartCPUProfile(f); err != nil {
		log.Printf("Profiler: Error starting CPU profile for '%s': %v", target, err)
		return
	}

	time.Sleep(p.config.Duration)
	p.cpu.StopCPUProfile()

	log.Printf("Profiler: CPU profile for target '%s' completed. Saved to %s", target, filename)
}

func sanitize(target string) string {
	return strings.NewReplacer("/", "_", ":", "_", string(filepath.Separator), "_").Replace(target)
}

func (p *Profiler) isCoolingDown(target string) bool {
	p.cooldownsLock.Lock()
	defer p.cooldownsLock.Unlock()

	if cooldownEnd, exists := p.cooldowns[target]; exists {
		if time.Now().Before(cooldownEnd) {
			return true
		}
		delete(p.cooldowns, target)
	}
	return false
}

func (p *Profiler) setCooldown(target string) {
	p.cooldownsLock.Lock()
	defer p.cooldownsLock.Unlock()

	p.cooldowns[target] = time.Now().Add(p.config.Cooldown)
}
