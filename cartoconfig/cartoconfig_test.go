package cartoconfig

import (
	"testing"

	"go.viam.com/test"

	"github.com/viam-modules/cartofacade/cartoerror"
)

func TestValidateRequiresCamera(t *testing.T) {
	err := Validate(Config{LidarConfig: TwoD})
	test.That(t, cartoerror.Of(err), test.ShouldEqual, cartoerror.ComponentReferenceInvalid)
}

func TestValidateRejectsBadLidarConfig(t *testing.T) {
	err := Validate(Config{Camera: "cam", LidarConfig: LidarConfig(99)})
	test.That(t, cartoerror.Of(err), test.ShouldEqual, cartoerror.LidarConfigInvalid)
}

func TestValidateRejectsIMUEnabledWithoutMovementSensor(t *testing.T) {
	err := Validate(Config{Camera: "cam", LidarConfig: TwoD, UseIMUData: true})
	test.That(t, cartoerror.Of(err), test.ShouldEqual, cartoerror.IMUProvidedAndIMUEnabledMismatch)
}

func TestValidateRejectsMovementSensorWithoutIMUEnabled(t *testing.T) {
	err := Validate(Config{Camera: "cam", LidarConfig: TwoD, MovementSensor: "ms"})
	test.That(t, cartoerror.Of(err), test.ShouldEqual, cartoerror.IMUProvidedAndIMUEnabledMismatch)
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	err := Validate(Config{Camera: "cam", LidarConfig: ThreeD, UseIMUData: true, MovementSensor: "ms"})
	test.That(t, err, test.ShouldBeNil)
}

func TestValidateAcceptsNeitherIMUNorMovementSensor(t *testing.T) {
	err := Validate(Config{Camera: "cam", LidarConfig: ThreeD})
	test.That(t, err, test.ShouldBeNil)
}

func TestDeriveModeMapping(t *testing.T) {
	mode, err := DeriveMode(Config{Camera: "cam", EnableMapping: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode, test.ShouldEqual, MappingMode)
}

func TestDeriveModeRequiresMappingWithNoExistingMap(t *testing.T) {
	_, err := DeriveMode(Config{Camera: "cam", EnableMapping: false})
	test.That(t, cartoerror.Of(err), test.ShouldEqual, cartoerror.SlamModeInvalid)
}

func TestDeriveModeLocalizing(t *testing.T) {
	mode, err := DeriveMode(Config{Camera: "cam", EnableMapping: false, ExistingMap: []byte("map")})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode, test.ShouldEqual, LocalizingMode)
}

func TestDeriveModeUpdating(t *testing.T) {
	mode, err := DeriveMode(Config{Camera: "cam", EnableMapping: true, ExistingMap: []byte("map")})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode, test.ShouldEqual, UpdatingMode)
}

func TestConfigBasenamePerMode(t *testing.T) {
	name, err := ConfigBasename(MappingMode)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, name, test.ShouldEqual, "mapping_new_map.lua")

	name, err = ConfigBasename(LocalizingMode)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, name, test.ShouldEqual, "locating_in_map.lua")

	name, err = ConfigBasename(UpdatingMode)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, name, test.ShouldEqual, "updating_a_map.lua")
}

func TestConfigBasenameUnknownMode(t *testing.T) {
	_, err := ConfigBasename(UnknownMode)
	test.That(t, cartoerror.Of(err), test.ShouldEqual, cartoerror.SlamModeInvalid)
}
