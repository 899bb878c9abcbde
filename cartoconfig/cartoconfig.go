// Package cartoconfig validates the facade's static configuration and
// derives its SLAM mode, per spec.md §4.5. It is grounded on
// cartofacade/capi.go's CartoConfig/CartoAlgoConfig structs and the mode
// derivation in viam_cartographer.go, plus
// original_source/.../carto_facade.h's viam_carto_config and the
// mapping/locating/updating Lua basename selection.
package cartoconfig

import (
	"github.com/viam-modules/cartofacade/cartoerror"
	"github.com/viam-modules/cartofacade/mapbuilder"
)

// LidarConfig selects the scan dimensionality, matching capi.go's
// LidarConfig enum.
type LidarConfig int

const (
	// TwoD denotes a 2D lidar.
	TwoD LidarConfig = iota
	// ThreeD denotes a 3D lidar.
	ThreeD
)

// Mode is the derived SLAM operating mode, matching SlamMode in
// capi.go and original_source's VIAM_CARTO_SLAM_MODE_* constants.
type Mode int

const (
	// UnknownMode is the zero value and never a valid derived mode.
	UnknownMode Mode = iota
	// MappingMode builds a new map with no prior map data.
	MappingMode
	// LocalizingMode localizes against an existing map without updating it.
	LocalizingMode
	// UpdatingMode extends an existing map while continuing to localize.
	UpdatingMode
)

func (m Mode) String() string {
	switch m {
	case MappingMode:
		return "MAPPING"
	case LocalizingMode:
		return "LOCALIZING"
	case UpdatingMode:
		return "UPDATING"
	default:
		return "UNKNOWN"
	}
}

// luaBasenames mirrors the original implementation's per-mode Lua config
// file selection (SPEC_FULL §12). This implementation's MapBuilder does
// not parse Lua, but the mapping is kept as the contract a real
// scan-matcher backend would branch on.
var luaBasenames = map[Mode]string{
	MappingMode:    "mapping_new_map.lua",
	LocalizingMode: "locating_in_map.lua",
	UpdatingMode:   "updating_a_map.lua",
}

// ConfigBasename returns the Lua config basename the original
// implementation would load for mode.
func ConfigBasename(mode Mode) (string, error) {
	name, ok := luaBasenames[mode]
	if !ok {
		return "", cartoerror.New(cartoerror.SlamModeInvalid, "no basename for unknown mode")
	}
	return name, nil
}

// Config contains the facade's static configuration, matching capi.go's
// CartoConfig field for field.
type Config struct {
	Camera             string
	MovementSensor     string
	ComponentReference string
	LidarConfig        LidarConfig

	UseIMUData    bool
	EnableMapping bool
	ExistingMap   []byte
}

// AlgoConfig re-exports mapbuilder.AlgoConfig so callers configure both
// the facade and the engine from one imported type.
type AlgoConfig = mapbuilder.AlgoConfig

// Validate checks Config against spec.md §4.5's invariants: a non-empty
// camera reference, a known LidarConfig, and an IMU/movement-sensor
// configuration that is internally consistent. UseIMUData and
// MovementSensor must agree: either both are set (the facade pulls
// motion estimates from the named movement sensor) or both are unset
// (no motion estimation source). Exactly one set without the other is
// IMUProvidedAndIMUEnabledMismatch.
func Validate(cfg Config) error {
	if cfg.Camera == "" {
		return cartoerror.New(cartoerror.ComponentReferenceInvalid, "camera reference must not be empty")
	}
	if cfg.LidarConfig != TwoD && cfg.LidarConfig != ThreeD {
		return cartoerror.New(cartoerror.LidarConfigInvalid, "lidar_config must be 2D or 3D")
	}
	if cfg.UseIMUData != (cfg.MovementSensor != "") {
		return cartoerror.New(cartoerror.IMUProvidedAndIMUEnabledMismatch,
			"use_imu_data and movement_sensor must be set together")
	}
	return nil
}

// DeriveMode computes the SLAM mode from whether an existing map was
// supplied and whether mapping is enabled, per spec.md §4.5's mode
// table: LOCALIZING requires an existing map with mapping disabled;
// UPDATING requires an existing map with mapping enabled; MAPPING is the
// only valid mode with no existing map.
func DeriveMode(cfg Config) (Mode, error) {
	hasMap := len(cfg.ExistingMap) > 0
	switch {
	case !hasMap && cfg.EnableMapping:
		return MappingMode, nil
	case !hasMap && !cfg.EnableMapping:
		return UnknownMode, cartoerror.New(cartoerror.SlamModeInvalid,
			"mapping must be enabled when no existing map is supplied")
	case hasMap && !cfg.EnableMapping:
		return LocalizingMode, nil
	default: // hasMap && cfg.EnableMapping
		return UpdatingMode, nil
	}
}
