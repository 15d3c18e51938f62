// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

// LoadingState is the coarse state shown to the user.
type LoadingState string

const (
	StateIdle    LoadingState = "idle"
	StateLoading LoadingState = "loading"
	StateLoaded  LoadingState = "loaded"
	StateError   LoadingState = "error"
)

// CacheStatus is the result of the last cache probe.
type CacheStatus string

const (
	CacheUnknown  CacheStatus = "unknown"
	CacheChecking CacheStatus = "checking"
	CacheNotFound CacheStatus = "not-found"
	CacheFound    CacheStatus = "found"
)

// Phase is the coordinator's internal state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCheckingCache
	PhaseLoading
	PhaseLoaded
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseCheckingCache:
		return "CheckingCache"
	case PhaseLoading:
		return "Loading"
	case PhaseLoaded:
		return "Loaded"
	case PhaseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// State maps the phase to the published LoadingState. A cache probe shows
// as idle; its progress is carried by CacheStatus.
func (p Phase) State() LoadingState {
	switch p {
	case PhaseLoading:
		return StateLoading
	case PhaseLoaded:
		return StateLoaded
	case PhaseError:
		return StateError
	default:
		return StateIdle
	}
}
