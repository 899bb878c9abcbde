// Package cartoerror enumerates the error kinds every cartofacade boundary
// operation can return. It mirrors the VIAM_CARTO_* return-code
// enumeration carried over from the C API this library replaces
// (original_source/viam-cartographer/api/src/slam/viam_carto.h), sorted
// into the same groups as spec.md §7.
package cartoerror

import "errors"

// Kind identifies one error from the taxonomy. Kinds are stable identity
// for callers that need to distinguish "expected, retry" errors (like
// UnableToAcquireLock) from terminal ones.
type Kind int

const (
	// Unknown is the zero value; it should never be returned deliberately.
	Unknown Kind = iota

	// Handle/lifetime.
	LibInvalid
	LibAlreadyInitialized
	LibNotInitialized
	LibPlatformInvalid
	VCInvalid
	NotInInitializedState
	NotInIOInitializedState
	NotInStartedState
	NotInTerminatableState

	// Config.
	ComponentReferenceInvalid
	LidarConfigInvalid
	SlamModeInvalid
	IMUProvidedAndIMUEnabledMismatch
	LuaConfigNotFound

	// Resource.
	OutOfMemory
	UnableToAcquireLock

	// Sensor ingest.
	UnknownSensorName
	LidarReadingEmpty
	LidarReadingInvalid
	IMUReadingEmpty
	IMUReadingInvalid
	OdometerReadingInvalid

	// Reads.
	GetPositionResponseInvalid
	GetPositionNotInitialized
	GetPointCloudMapResponseInvalid
	PointCloudMapEmpty
	GetInternalStateResponseInvalid
	GetInternalStateFileWriteIOError
	GetInternalStateFileReadIOError

	// SLAM integration.
	MapCreationError
	InternalStateFileSystemError
	DestructorError
	UnknownError
)

var names = map[Kind]string{
	Unknown:                          "UNKNOWN",
	LibInvalid:                       "LIB_INVALID",
	LibAlreadyInitialized:            "LIB_ALREADY_INITIALIZED",
	LibNotInitialized:                "LIB_NOT_INITIALIZED",
	LibPlatformInvalid:               "LIB_PLATFORM_INVALID",
	VCInvalid:                        "VC_INVALID",
	NotInInitializedState:            "NOT_IN_INITIALIZED_STATE",
	NotInIOInitializedState:          "NOT_IN_IO_INITIALIZED_STATE",
	NotInStartedState:                "NOT_IN_STARTED_STATE",
	NotInTerminatableState:           "NOT_IN_TERMINATABLE_STATE",
	ComponentReferenceInvalid:        "COMPONENT_REFERENCE_INVALID",
	LidarConfigInvalid:               "LIDAR_CONFIG_INVALID",
	SlamModeInvalid:                  "SLAM_MODE_INVALID",
	IMUProvidedAndIMUEnabledMismatch: "IMU_PROVIDED_AND_IMU_ENABLED_MISMATCH",
	LuaConfigNotFound:                "LUA_CONFIG_NOT_FOUND",
	OutOfMemory:                      "OUT_OF_MEMORY",
	UnableToAcquireLock:              "UNABLE_TO_ACQUIRE_LOCK",
	UnknownSensorName:                "UNKNOWN_SENSOR_NAME",
	LidarReadingEmpty:                "LIDAR_READING_EMPTY",
	LidarReadingInvalid:              "LIDAR_READING_INVALID",
	IMUReadingEmpty:                  "IMU_READING_EMPTY",
	IMUReadingInvalid:                "IMU_READING_INVALID",
	OdometerReadingInvalid:           "ODOMETER_READING_INVALID",
	GetPositionResponseInvalid:       "GET_POSITION_RESPONSE_INVALID",
	GetPositionNotInitialized:        "GET_POSITION_NOT_INITIALIZED",
	GetPointCloudMapResponseInvalid:  "GET_POINT_CLOUD_MAP_RESPONSE_INVALID",
	PointCloudMapEmpty:               "POINTCLOUD_MAP_EMPTY",
	GetInternalStateResponseInvalid:  "GET_INTERNAL_STATE_RESPONSE_INVALID",
	GetInternalStateFileWriteIOError: "GET_INTERNAL_STATE_FILE_WRITE_IO_ERROR",
	GetInternalStateFileReadIOError:  "GET_INTERNAL_STATE_FILE_READ_IO_ERROR",
	MapCreationError:                 "MAP_CREATION_ERROR",
	InternalStateFileSystemError:     "INTERNAL_STATE_FILE_SYSTEM_ERROR",
	DestructorError:                  "DESTRUCTOR_ERROR",
	UnknownError:                     "UNKNOWN_ERROR",
}

// String renders the kind the way the C taxonomy's symbol names read.
func (k Kind) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Error is a boundary error carrying a stable Kind plus free-form context.
// Every public cartofacade entry point that fails returns one of these
// (possibly wrapped by github.com/pkg/errors upstream of the boundary).
type Error struct {
	Kind Kind
	msg  string
}

// New constructs an Error of the given kind with a human-readable message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.msg
}

// Is allows errors.Is(err, cartoerror.New(kind, "")) style comparisons by
// matching on Kind alone, independent of message text.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Of reports the Kind of err, or Unknown if err is not one of ours.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
