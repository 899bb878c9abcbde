package cartoerror

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestErrorMessage(t *testing.T) {
	err := New(LidarReadingInvalid, "bad header")
	test.That(t, err.Error(), test.ShouldEqual, "LIDAR_READING_INVALID: bad header")
}

func TestErrorMessageNoContext(t *testing.T) {
	err := New(UnableToAcquireLock, "")
	test.That(t, err.Error(), test.ShouldEqual, "UNABLE_TO_ACQUIRE_LOCK")
}

func TestIsMatchesByKind(t *testing.T) {
	err := New(PointCloudMapEmpty, "empty map")
	target := New(PointCloudMapEmpty, "")
	test.That(t, errors.Is(err, target), test.ShouldBeTrue)

	other := New(LidarReadingEmpty, "")
	test.That(t, errors.Is(err, other), test.ShouldBeFalse)
}

func TestOfUnwrapsOurErrors(t *testing.T) {
	err := New(GetPositionNotInitialized, "not yet")
	test.That(t, Of(err), test.ShouldEqual, GetPositionNotInitialized)
}

func TestOfReturnsUnknownForForeignErrors(t *testing.T) {
	test.That(t, Of(errors.New("boom")), test.ShouldEqual, Unknown)
}

func TestStringFallsBackToUnknown(t *testing.T) {
	var k Kind = 9999
	test.That(t, k.String(), test.ShouldEqual, "UNKNOWN")
}
