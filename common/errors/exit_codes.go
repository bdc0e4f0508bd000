package errors

type ExitCode int

const (
	GenericFailureExitCode ExitCode = 1

	// Exit codes for ygrid commands, from sysexits.h.
	InvalidJobExitCode  ExitCode = 65
	UnreachableExitCode ExitCode = 69
	InternalExitCode    ExitCode = 70
	ConfigExitCode      ExitCode = 78
)
