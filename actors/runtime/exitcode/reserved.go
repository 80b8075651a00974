package exitcode

import "strconv"

type ExitCode int64

func (x ExitCode) IsSuccess() bool {
	return x == Ok
}

func (x ExitCode) IsError() bool {
	return !x.IsSuccess()
}

// Implement error to trigger Go compiler checking of exit code return values.
func (x ExitCode) Error() string {
	return strconv.FormatInt(int64(x), 10)
}

const (
	Ok = ExitCode(0)
	// NOTE: none of the system error codes should ever be used by actors.

	// Indicates the message sender doesn't exist.
	SysErrSenderInvalid = ExitCode(1)

	// Indicates that the message sender was not in a valid state to send this message.
	SysErrSenderStateInvalid = ExitCode(2)

	// Indicates failure to find a method in an actor.
	SysErrInvalidMethod = ExitCode(3)

	// Reserved exit code, do not use.
	SysErrReserved1 = ExitCode(4)

	// Indicates that the receiver of a message is not valid (and cannot be implicitly created).
	SysErrInvalidReceiver = ExitCode(5)

	// Indicates that a message sender has insufficient balance for the value being sent.
	SysErrInsufficientFunds = ExitCode(6)

	// Indicates message execution (including subcalls) used more gas than the specified limit.
	SysErrOutOfGas = ExitCode(7)

	// Indicates message execution is forbidden for the caller by runtime caller validation.
	SysErrForbidden = ExitCode(8)

	// Indicates actor code performed a disallowed operation. Disallowed operations include:
	// - mutating state outside of a state acquisition block
	// - failing to invoke caller validation
	// - aborting with a reserved exit code (including success or a system error).
	SysErrIllegalActor = ExitCode(9)

	// Indicates an invalid argument passed to a runtime method.
	SysErrIllegalArgument = ExitCode(10)

	// Reserved exit codes, do not use.
	SysErrReserved2 = ExitCode(11)
	SysErrReserved3 = ExitCode(12)
	SysErrReserved4 = ExitCode(13)
	SysErrReserved5 = ExitCode(14)
	SysErrReserved6 = ExitCode(15)
)

// The initial range of exit codes is reserved for system errors.
// Actors may define codes starting with this one.
const FirstActorErrorCode = ExitCode(16)
