// Package runner provides the common vocabulary shared by the supervisor
// stages: Result, Limit, Size and Status.
//
// Status
//
// Status is the termination reason determined for one bounded child process:
//  Normal
//  Resource Limit Exceeded (Time / Memory / Output)
//  Unauthorized Access (Disallowed Syscall)
//  Runtime Error (Signalled / Nonzero Exit Status)
//  Runner Error (broken environment, spawn failure)
//
// Size
//
// Size defines size in bytes, underlying type is uint64 so it
// is effective to store up to EiB of size
//
// Limit
//
// Limit defines the CPU time, wall clock, memory and output ceilings
// applied to one child process tree
//
// Result
//
// Result defines the measured outcome of one bounded invocation including
// Status, ExitStatus, detailed error, consumed CPU time, peak memory,
// bytes written to the standard streams, SetUpTime and RunningTime
// (in real clock)
package runner
