package mbeanserver

import (
	"context"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/fllarpy/mbean-bridge/domain/mbean"
)

// PlatformDomain is the domain of the Go runtime beans.
const PlatformDomain = "go.runtime"

type memoryPool struct {
	name      string
	kind      string
	used      func(*runtime.MemStats) uint64
	committed func(*runtime.MemStats) uint64
}

var memoryPools = []memoryPool{
	{"heap", "HEAP", func(m *runtime.MemStats) uint64 { return m.HeapInuse }, func(m *runtime.MemStats) uint64 { return m.HeapSys }},
	{"stack", "NON_HEAP", func(m *runtime.MemStats) uint64 { return m.StackInuse }, func(m *runtime.MemStats) uint64 { return m.StackSys }},
	{"mspan", "NON_HEAP", func(m *runtime.MemStats) uint64 { return m.MSpanInuse }, func(m *runtime.MemStats) uint64 { return m.MSpanSys }},
	{"mcache", "NON_HEAP", func(m *runtime.MemStats) uint64 { return m.MCacheInuse }, func(m *runtime.MemStats) uint64 { return m.MCacheSys }},
	{"buckhash", "NON_HEAP", func(m *runtime.MemStats) uint64 { return m.BuckHashSys }, func(m *runtime.MemStats) uint64 { return m.BuckHashSys }},
	{"gc-metadata", "NON_HEAP", func(m *runtime.MemStats) uint64 { return m.GCSys }, func(m *runtime.MemStats) uint64 { return m.GCSys }},
	{"other", "NON_HEAP", func(m *runtime.MemStats) uint64 { return m.OtherSys }, func(m *runtime.MemStats) uint64 { return m.OtherSys }},
}

func usage(used, committed, max uint64) mbean.Value {
	return mbean.Composite(
		mbean.F("init", mbean.Number(0)),
		mbean.F("used", mbean.Number(float64(used))),
		mbean.F("committed", mbean.Number(float64(committed))),
		mbean.F("max", mbean.Number(float64(max))),
	)
}

// memStat builds an attribute whose getter reads runtime.MemStats. Every read
// takes a fresh reading; nothing is cached between requests.
func memStat(name, description string, shape mbean.Shape, fn func(*runtime.MemStats) mbean.Value) Attribute {
	return Attribute{
		Name:        name,
		Description: description,
		Shape:       shape,
		Get: func(context.Context) (mbean.Value, error) {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return fn(&ms), nil
		},
	}
}

func memNumber(name, description string, fn func(*runtime.MemStats) uint64) Attribute {
	return memStat(name, description, mbean.ShapeScalar, func(m *runtime.MemStats) mbean.Value {
		return mbean.Number(float64(fn(m)))
	})
}

func lastGcInfo(m *runtime.MemStats) mbean.Value {
	var (
		pauseMs float64
		startMs float64
	)
	if m.NumGC > 0 {
		pauseMs = float64(m.PauseNs[(m.NumGC+255)%256]) / 1e6
		startMs = float64(m.LastGC / 1e6)
	}

	rows := make([][]mbean.Field, 0, len(memoryPools))
	for _, p := range memoryPools {
		rows = append(rows, []mbean.Field{
			mbean.F("key", mbean.String(p.name)),
			mbean.F("value", usage(p.used(m), p.committed(m), p.committed(m))),
		})
	}

	return mbean.Composite(
		mbean.F("id", mbean.Number(float64(m.NumGC))),
		mbean.F("startTime", mbean.Number(startMs)),
		mbean.F("duration", mbean.Number(pauseMs)),
		mbean.F("memoryUsageAfterGc", mbean.Tabular([]string{"key"}, rows...)),
	)
}

// RegisterPlatform registers the Go runtime beans. start is reported as the
// process start time.
func RegisterPlatform(s *Server, start time.Time) error {
	memory := []Attribute{
		memStat("HeapMemoryUsage", "Heap memory usage in bytes", mbean.ShapeComposite, func(m *runtime.MemStats) mbean.Value {
			return usage(m.HeapAlloc, m.HeapSys, m.Sys)
		}),
		memStat("NonHeapMemoryUsage", "Non-heap memory usage in bytes", mbean.ShapeComposite, func(m *runtime.MemStats) mbean.Value {
			used := m.StackInuse + m.MSpanInuse + m.MCacheInuse
			committed := m.StackSys + m.MSpanSys + m.MCacheSys + m.BuckHashSys + m.GCSys + m.OtherSys
			return usage(used, committed, committed)
		}),
		memNumber("Alloc", "Bytes of allocated heap objects", func(m *runtime.MemStats) uint64 { return m.Alloc }),
		memNumber("TotalAlloc", "Cumulative bytes allocated for heap objects", func(m *runtime.MemStats) uint64 { return m.TotalAlloc }),
		memNumber("Sys", "Total bytes of memory obtained from the OS", func(m *runtime.MemStats) uint64 { return m.Sys }),
		memNumber("Mallocs", "Cumulative count of heap objects allocated", func(m *runtime.MemStats) uint64 { return m.Mallocs }),
		memNumber("Frees", "Cumulative count of heap objects freed", func(m *runtime.MemStats) uint64 { return m.Frees }),
		memNumber("HeapObjects", "Number of allocated heap objects", func(m *runtime.MemStats) uint64 { return m.HeapObjects }),
	}
	if err := s.Register(mbean.ObjectName{Domain: PlatformDomain, Properties: []mbean.Property{{Key: "type", Value: "Memory"}}}, memory...); err != nil {
		return err
	}

	for _, p := range memoryPools {
		p := p
		name := mbean.ObjectName{Domain: PlatformDomain, Properties: []mbean.Property{
			{Key: "type", Value: "MemoryPool"},
			{Key: "name", Value: p.name},
		}}
		err := s.Register(name,
			memStat("Usage", "", mbean.ShapeComposite, func(m *runtime.MemStats) mbean.Value {
				return usage(p.used(m), p.committed(m), p.committed(m))
			}),
			Attribute{Name: "Type", Shape: mbean.ShapeScalar, Get: Constant(mbean.String(p.kind))},
		)
		if err != nil {
			return err
		}
	}

	gc := []Attribute{
		memNumber("CollectionCount", "Number of completed GC cycles", func(m *runtime.MemStats) uint64 { return uint64(m.NumGC) }),
		memStat("CollectionTime", "Cumulative GC pause time in milliseconds", mbean.ShapeScalar, func(m *runtime.MemStats) mbean.Value {
			return mbean.Number(float64(m.PauseTotalNs) / 1e6)
		}),
		memStat("GCCPUFraction", "Fraction of CPU time used by the GC", mbean.ShapeScalar, func(m *runtime.MemStats) mbean.Value {
			return mbean.Number(m.GCCPUFraction)
		}),
		memStat("LastGcInfo", "", mbean.ShapeComposite, lastGcInfo),
	}
	if err := s.Register(mbean.ObjectName{Domain: PlatformDomain, Properties: []mbean.Property{
		{Key: "type", Value: "GarbageCollector"},
		{Key: "name", Value: "GoGC"},
	}}, gc...); err != nil {
		return err
	}

	threadcreate := pprof.Lookup("threadcreate")
	threading := []Attribute{
		Gauge("GoroutineCount", "Number of live goroutines", func() float64 { return float64(runtime.NumGoroutine()) }),
		Gauge("TotalStartedThreadCount", "OS threads created by the runtime", func() float64 { return float64(threadcreate.Count()) }),
	}
	if err := s.Register(mbean.ObjectName{Domain: PlatformDomain, Properties: []mbean.Property{{Key: "type", Value: "Threading"}}}, threading...); err != nil {
		return err
	}

	rt := []Attribute{
		Gauge("Uptime", "Milliseconds since the bridge started", func() float64 { return float64(time.Since(start).Milliseconds()) }),
		Gauge("StartTime", "Start time in milliseconds since the epoch", func() float64 { return float64(start.UnixMilli()) }),
		Gauge("AvailableProcessors", "Logical CPUs usable by the process", func() float64 { return float64(runtime.NumCPU()) }),
		Gauge("MaxProcs", "Current GOMAXPROCS", func() float64 { return float64(runtime.GOMAXPROCS(0)) }),
		Gauge("CgoCalls", "Cgo calls made by the process", func() float64 { return float64(runtime.NumCgoCall()) }),
		{Name: "Version", Shape: mbean.ShapeScalar, Get: Constant(mbean.String(runtime.Version()))},
	}
	return s.Register(mbean.ObjectName{Domain: PlatformDomain, Properties: []mbean.Property{{Key: "type", Value: "Runtime"}}}, rt...)
}
