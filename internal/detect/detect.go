// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// gpuDetectTimeout bounds a full detection pass.
const gpuDetectTimeout = 10 * time.Second

// =============================================================================
// GPU VENDOR
// =============================================================================

// Vendor identifies the GPU family the inference engine runs on.
type Vendor int

const (
	// VendorNone means no dedicated GPU was found; inference runs on the CPU.
	VendorNone Vendor = iota
	VendorNvidia
	VendorAMD
	VendorApple
	VendorIntel
)

// String returns the lowercase vendor tag reported to the engine.
func (v Vendor) String() string {
	switch v {
	case VendorNvidia:
		return "nvidia"
	case VendorAMD:
		return "amd"
	case VendorApple:
		return "apple"
	case VendorIntel:
		return "intel"
	default:
		return "cpu"
	}
}

// Info describes the detected GPU.
type Info struct {
	Vendor Vendor
	// Name of the adapter, e.g. "NVIDIA GeForce RTX 4070".
	Name string
	// VramMB is 0 when unknown or shared.
	VramMB int
}

func (i Info) String() string {
	if i.VramMB > 0 {
		return fmt.Sprintf("%s (%d MB VRAM)", i.Name, i.VramMB)
	}
	return i.Name
}

// =============================================================================
// DETECTION
// =============================================================================

// runner executes a command and returns its stdout.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Detector probes the system for a GPU.
type Detector struct {
	run  runner
	goos string
}

// NewDetector returns a detector using the real system tools.
func NewDetector() *Detector {
	return &Detector{run: execRunner, goos: runtime.GOOS}
}

// Detect probes NVIDIA, AMD, Apple and Intel in that order and falls back
// to CPU.
func (d *Detector) Detect(ctx context.Context) Info {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gpuDetectTimeout)
		defer cancel()
	}

	probes := []func(context.Context) (Info, bool){
		d.nvidia,
		d.amd,
		d.apple,
		d.intel,
	}
	for _, probe := range probes {
		if info, ok := probe(ctx); ok {
			return info
		}
		if ctx.Err() != nil {
			break
		}
	}
	return Info{Vendor: VendorNone, Name: "CPU Only"}
}

func (d *Detector) nvidia(ctx context.Context) (Info, bool) {
	paths := []string{"nvidia-smi"}
	if d.goos == "windows" {
		paths = append(paths,
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`)
	}

	for _, path := range paths {
		out, err := d.run(ctx, path, "--query-gpu=name,memory.total", "--format=csv,noheader,nounits")
		if err != nil || len(out) == 0 {
			continue
		}
		line := strings.TrimSpace(strings.Split(strings.TrimSpace(string(out)), "\n")[0])
		parts := strings.Split(line, ", ")
		if len(parts) < 2 {
			continue
		}
		vram, _ := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		return Info{
			Vendor: VendorNvidia,
			Name:   "NVIDIA " + strings.TrimSpace(parts[0]),
			VramMB: int(vram),
		}, true
	}
	return Info{}, false
}

func (d *Detector) amd(ctx context.Context) (Info, bool) {
	if d.goos == "windows" {
		out, err := d.run(ctx, "powershell", "-NoProfile", "-Command",
			"(Get-CimInstance Win32_VideoController | Where-Object { $_.Name -match 'AMD|Radeon' } | Select-Object -First 1).Name")
		name := strings.TrimSpace(string(out))
		if err != nil || name == "" {
			return Info{}, false
		}
		return Info{Vendor: VendorAMD, Name: name}, true
	}

	out, err := d.run(ctx, "rocm-smi", "--showproductname")
	if err != nil {
		return Info{}, false
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "Card series") || strings.Contains(line, "Card Series") {
			if idx := strings.LastIndex(line, ":"); idx >= 0 {
				return Info{Vendor: VendorAMD, Name: "AMD " + strings.TrimSpace(line[idx+1:])}, true
			}
		}
	}
	return Info{Vendor: VendorAMD, Name: "AMD GPU"}, true
}

// appleChips is ordered so the longest name matches first.
var appleChips = []string{
	"M4 Ultra", "M4 Max", "M4 Pro", "M4",
	"M3 Ultra", "M3 Max", "M3 Pro", "M3",
	"M2 Ultra", "M2 Max", "M2 Pro", "M2",
	"M1 Ultra", "M1 Max", "M1 Pro", "M1",
}

func (d *Detector) apple(ctx context.Context) (Info, bool) {
	if d.goos != "darwin" {
		return Info{}, false
	}
	out, err := d.run(ctx, "system_profiler", "SPDisplaysDataType", "-json")
	if err != nil || !strings.Contains(string(out), "Apple") {
		return Info{}, false
	}
	name := "Apple Silicon"
	for _, chip := range appleChips {
		if strings.Contains(string(out), chip) {
			name = "Apple " + chip
			break
		}
	}
	return Info{Vendor: VendorApple, Name: name}, true
}

func (d *Detector) intel(ctx context.Context) (Info, bool) {
	out, err := d.run(ctx, "intel_gpu_top", "-L")
	if err != nil || !strings.Contains(strings.ToLower(string(out)), "arc") {
		return Info{}, false
	}
	return Info{Vendor: VendorIntel, Name: "Intel Arc"}, true
}

// =============================================================================
// CACHED ACCESS
// =============================================================================

var (
	cacheMu   sync.Mutex
	cached    *Info
	cachedAt  time.Time
	cacheLife = 5 * time.Minute
)

// DetectCached returns a detection result no older than five minutes.
func DetectCached(ctx context.Context) Info {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached != nil && time.Since(cachedAt) < cacheLife {
		return *cached
	}
	info := NewDetector().Detect(ctx)
	cached = &info
	cachedAt = time.Now()
	return info
}

// GPUVendor returns the vendor tag of the detected GPU.
func GPUVendor(ctx context.Context) (string, error) {
	return DetectCached(ctx).Vendor.String(), nil
}
