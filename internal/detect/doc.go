// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect identifies the GPU the local inference engine will use.
//
// Supported GPU Types:
//   - NVIDIA (via nvidia-smi)
//   - AMD (via rocm-smi on Linux, CIM on Windows)
//   - Apple Silicon (via system_profiler on macOS)
//   - Intel Arc (via intel_gpu_top)
//
// When nothing is found the result is a CPU-only Info.
package detect
