package mbeanserver

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/fllarpy/mbean-bridge/domain/mbean"
)

// HostDomain is the domain of the host beans.
const HostDomain = "host"

func hostName(kind string, extra ...mbean.Property) mbean.ObjectName {
	props := append([]mbean.Property{{Key: "type", Value: kind}}, extra...)
	return mbean.ObjectName{Domain: HostDomain, Properties: props}
}

func number(v float64, err error) (mbean.Value, error) {
	if err != nil {
		return mbean.Value{}, err
	}
	return mbean.Number(v), nil
}

// RegisterHost registers beans describing the host and the bridge process.
// Unsupported platforms surface as per-attribute read errors, which the
// snapshot builder skips.
func RegisterHost(s *Server, diskPaths []string) error {
	loadAvg := func(pick func(*load.AvgStat) float64) Getter {
		return func(ctx context.Context) (mbean.Value, error) {
			avg, err := load.AvgWithContext(ctx)
			if err != nil {
				return mbean.Value{}, err
			}
			return mbean.Number(pick(avg)), nil
		}
	}
	if err := s.Register(hostName("Load"),
		Attribute{Name: "Load1", Description: "1 minute load average", Get: loadAvg(func(a *load.AvgStat) float64 { return a.Load1 })},
		Attribute{Name: "Load5", Description: "5 minute load average", Get: loadAvg(func(a *load.AvgStat) float64 { return a.Load5 })},
		Attribute{Name: "Load15", Description: "15 minute load average", Get: loadAvg(func(a *load.AvgStat) float64 { return a.Load15 })},
	); err != nil {
		return err
	}

	virtual := func(pick func(*mem.VirtualMemoryStat) float64) Getter {
		return func(ctx context.Context) (mbean.Value, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return mbean.Value{}, err
			}
			return mbean.Number(pick(vm)), nil
		}
	}
	if err := s.Register(hostName("Memory"),
		Attribute{Name: "Total", Description: "Total physical memory in bytes", Get: virtual(func(v *mem.VirtualMemoryStat) float64 { return float64(v.Total) })},
		Attribute{Name: "Available", Description: "Available memory in bytes", Get: virtual(func(v *mem.VirtualMemoryStat) float64 { return float64(v.Available) })},
		Attribute{Name: "Used", Description: "Used memory in bytes", Get: virtual(func(v *mem.VirtualMemoryStat) float64 { return float64(v.Used) })},
		Attribute{Name: "UsedPercent", Description: "Used memory in percent", Get: virtual(func(v *mem.VirtualMemoryStat) float64 { return v.UsedPercent })},
		Attribute{Name: "SwapUsage", Description: "Swap usage in bytes", Shape: mbean.ShapeComposite, Get: func(ctx context.Context) (mbean.Value, error) {
			sw, err := mem.SwapMemoryWithContext(ctx)
			if err != nil {
				return mbean.Value{}, err
			}
			return mbean.Composite(
				mbean.F("total", mbean.Number(float64(sw.Total))),
				mbean.F("used", mbean.Number(float64(sw.Used))),
				mbean.F("free", mbean.Number(float64(sw.Free))),
			), nil
		}},
	); err != nil {
		return err
	}

	if err := s.Register(hostName("CPU"),
		Attribute{Name: "LogicalCount", Description: "Logical CPU count", Get: func(ctx context.Context) (mbean.Value, error) {
			n, err := cpu.CountsWithContext(ctx, true)
			return number(float64(n), err)
		}},
		Attribute{Name: "PhysicalCount", Description: "Physical core count", Get: func(ctx context.Context) (mbean.Value, error) {
			n, err := cpu.CountsWithContext(ctx, false)
			return number(float64(n), err)
		}},
		Attribute{Name: "Utilization", Description: "CPU utilization in percent since the previous read", Get: func(ctx context.Context) (mbean.Value, error) {
			pct, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil {
				return mbean.Value{}, err
			}
			if len(pct) == 0 {
				return mbean.Unsupported(), nil
			}
			return mbean.Number(pct[0]), nil
		}},
	); err != nil {
		return err
	}

	pid := int32(os.Getpid())
	proc := func(ctx context.Context) (*process.Process, error) {
		return process.NewProcessWithContext(ctx, pid)
	}
	if err := s.Register(hostName("Process", mbean.Property{Key: "pid", Value: fmt.Sprint(pid)}),
		Attribute{Name: "ResidentMemory", Description: "Resident set size in bytes", Get: func(ctx context.Context) (mbean.Value, error) {
			p, err := proc(ctx)
			if err != nil {
				return mbean.Value{}, err
			}
			mi, err := p.MemoryInfoWithContext(ctx)
			if err != nil {
				return mbean.Value{}, err
			}
			return mbean.Number(float64(mi.RSS)), nil
		}},
		Attribute{Name: "VirtualMemory", Description: "Virtual memory size in bytes", Get: func(ctx context.Context) (mbean.Value, error) {
			p, err := proc(ctx)
			if err != nil {
				return mbean.Value{}, err
			}
			mi, err := p.MemoryInfoWithContext(ctx)
			if err != nil {
				return mbean.Value{}, err
			}
			return mbean.Number(float64(mi.VMS)), nil
		}},
		Attribute{Name: "ThreadCount", Description: "OS threads of the process", Get: func(ctx context.Context) (mbean.Value, error) {
			p, err := proc(ctx)
			if err != nil {
				return mbean.Value{}, err
			}
			n, err := p.NumThreadsWithContext(ctx)
			return number(float64(n), err)
		}},
		Attribute{Name: "OpenFileDescriptorCount", Description: "Open file descriptors", Get: func(ctx context.Context) (mbean.Value, error) {
			p, err := proc(ctx)
			if err != nil {
				return mbean.Value{}, err
			}
			n, err := p.NumFDsWithContext(ctx)
			return number(float64(n), err)
		}},
	); err != nil {
		return err
	}

	for _, path := range diskPaths {
		path := path
		err := s.Register(hostName("FileSystem", mbean.Property{Key: "path", Value: path}),
			Attribute{Name: "Usage", Description: "File system usage in bytes", Shape: mbean.ShapeComposite, Get: func(ctx context.Context) (mbean.Value, error) {
				u, err := disk.UsageWithContext(ctx, path)
				if err != nil {
					return mbean.Value{}, err
				}
				return mbean.Composite(
					mbean.F("total", mbean.Number(float64(u.Total))),
					mbean.F("used", mbean.Number(float64(u.Used))),
					mbean.F("free", mbean.Number(float64(u.Free))),
					mbean.F("usedPercent", mbean.Number(u.UsedPercent)),
				), nil
			}},
		)
		if err != nil {
			return err
		}
	}
	return nil
}
