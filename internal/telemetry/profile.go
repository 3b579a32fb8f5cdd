package telemetry

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Profile captures pprof data for the lifetime of one command run. The
// nodes are long-lived, so profiling brackets the whole process: CPU and
// trace start up front, the heap snapshot is written at shutdown.
//
// A Profile with no paths set is a no-op, which lets callers wire it
// unconditionally behind optional flags.
type Profile struct {
	cpuPath   string
	heapPath  string
	tracePath string

	cpuFile   *os.File
	traceFile *os.File
}

// NewProfile builds a Profile writing to the given paths. Empty paths
// disable the corresponding profile.
func NewProfile(cpuPath, heapPath, tracePath string) *Profile {
	return &Profile{
		cpuPath:   cpuPath,
		heapPath:  heapPath,
		tracePath: tracePath,
	}
}

// Start begins CPU profiling and execution tracing for the configured
// paths. On error it stops whatever it already started.
func (p *Profile) Start() error {
	if p.cpuPath != "" {
		f, err := os.Create(p.cpuPath)
		if err != nil {
			return fmt.Errorf("create cpu profile %s: %w", p.cpuPath, err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("start cpu profile: %w", err)
		}
		p.cpuFile = f
	}

	if p.tracePath != "" {
		f, err := os.Create(p.tracePath)
		if err != nil {
			p.stopCPU()
			return fmt.Errorf("create trace %s: %w", p.tracePath, err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			p.stopCPU()
			return fmt.Errorf("start trace: %w", err)
		}
		p.traceFile = f
	}

	return nil
}

// Stop flushes the running profiles and writes the heap snapshot, if one
// was requested. Safe to call after a failed or skipped Start.
func (p *Profile) Stop() error {
	p.stopCPU()

	if p.traceFile != nil {
		trace.Stop()
		_ = p.traceFile.Close()
		p.traceFile = nil
	}

	if p.heapPath != "" {
		if err := writeHeapProfile(p.heapPath); err != nil {
			return err
		}
	}
	return nil
}

func (p *Profile) stopCPU() {
	if p.cpuFile == nil {
		return
	}
	pprof.StopCPUProfile()
	_ = p.cpuFile.Close()
	p.cpuFile = nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	// Collect first so the snapshot shows live objects, not garbage.
	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}
