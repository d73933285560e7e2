package session

import (
	"fmt"
	"sync"

	"codeberg.org/okkola/labdaq/internal/calibration"
	"codeberg.org/okkola/labdaq/internal/descriptor"
	"codeberg.org/okkola/labdaq/internal/errors"
)

// DeviceSettings are the live, operator-adjustable parameters of one device.
// A zero value means "descriptor defaults": free-run rate, unity gain, the
// descriptor's calibration, all channels enabled.
type DeviceSettings struct {
	// RateHz is the target sampling rate. Zero or negative means free-run:
	// the next read is issued as soon as the previous reply arrives.
	RateHz float64 `json:"rate_hz"`
	// Gain is the external amplifier gain divided out of raw readings.
	// Zero means unity.
	Gain float64 `json:"gain"`
	// Calibration overrides the descriptor's per-channel calibration name
	// when non-empty.
	Calibration string `json:"calibration,omitempty"`
	// EnabledChannels restricts sampling to the listed channel indices.
	// Empty means all descriptor channels.
	EnabledChannels []int `json:"enabled_channels,omitempty"`
}

func (s DeviceSettings) validate(desc *descriptor.DeviceDescriptor, registry *calibration.Registry) error {
	errFactory := errors.New()

	if s.Gain < 0 {
		return errFactory.WithData(ErrConfigInvalid, fmt.Sprintf("%s: negative gain %g", desc.Name, s.Gain))
	}
	for _, index := range s.EnabledChannels {
		if _, ok := desc.ChannelByIndex(index); !ok {
			return errFactory.WithData(ErrConfigInvalid, fmt.Sprintf("%s: no channel %d", desc.Name, index))
		}
	}
	if s.Calibration != "" {
		fn, ok := registry.Lookup(s.Calibration)
		if !ok {
			return errFactory.WithData(ErrConfigInvalid, fmt.Sprintf("%s: unknown calibration %q", desc.Name, s.Calibration))
		}
		// The override applies to every enabled channel, so it must honor
		// the same unit and domain contract the descriptor's calibration
		// satisfied at load time: a sample always carries its channel's
		// declared unit, and the declared raw range must be accepted.
		domain := fn.Domain()
		for _, ch := range desc.Channels {
			if len(s.EnabledChannels) > 0 && !containsChannel(s.EnabledChannels, ch.Index) {
				continue
			}
			if fn.Unit() != ch.Unit {
				return errFactory.WithData(ErrConfigInvalid,
					fmt.Sprintf("%s: calibration %q yields %s but channel %d declares %s",
						desc.Name, s.Calibration, fn.Unit(), ch.Index, ch.Unit))
			}
			if ch.Min < domain.Min || ch.Max > domain.Max {
				return errFactory.WithData(ErrConfigInvalid,
					fmt.Sprintf("%s: channel %d range [%g,%g] outside %s domain [%g,%g]",
						desc.Name, ch.Index, ch.Min, ch.Max, s.Calibration, domain.Min, domain.Max))
			}
		}
	}

	return nil
}

func containsChannel(channels []int, index int) bool {
	for _, c := range channels {
		if c == index {
			return true
		}
	}
	return false
}

// SettingsStore maps device ids to their live settings. The coordinator is
// the single writer; workers take one immutable snapshot per sampling cycle,
// so a concurrent update is observed exactly at a cycle boundary, never
// mid-cycle.
type SettingsStore struct {
	mu       sync.RWMutex
	settings map[string]DeviceSettings
}

// NewSettingsStore builds a store pre-populated with the given settings.
func NewSettingsStore(initial map[string]DeviceSettings) *SettingsStore {
	settings := make(map[string]DeviceSettings, len(initial))
	for id, s := range initial {
		settings[id] = snapshotOf(s)
	}
	return &SettingsStore{settings: settings}
}

// Get returns a snapshot of the settings for the given device. Mutating the
// returned value never affects the store.
func (st *SettingsStore) Get(deviceID string) DeviceSettings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return snapshotOf(st.settings[deviceID])
}

// Put replaces the settings for the given device atomically.
func (st *SettingsStore) Put(deviceID string, s DeviceSettings) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.settings[deviceID] = snapshotOf(s)
}

// All returns a snapshot of every device's settings.
func (st *SettingsStore) All() map[string]DeviceSettings {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make(map[string]DeviceSettings, len(st.settings))
	for id, s := range st.settings {
		out[id] = snapshotOf(s)
	}
	return out
}

func snapshotOf(s DeviceSettings) DeviceSettings {
	if s.EnabledChannels != nil {
		channels := make([]int, len(s.EnabledChannels))
		copy(channels, s.EnabledChannels)
		s.EnabledChannels = channels
	}
	return s
}
