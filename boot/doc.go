// Package boot is the first-stage boot loader core.
//
// On reset the loader runs exactly once, single-threaded, with nothing else
// on the device:
//
//	Reset -> ResolveName -> Opened    -> UpdatePages -> CheckEntry -> Dispatch
//	                     -> NotOpened ---------------->            -> Halt
//
// ResolveName picks the image file (a name stored in configuration bytes,
// then the built-in default). UpdatePages streams the image one flash page at
// a time and erases+programs only the pages whose content differs.
// CheckEntry looks at the first instruction word: erased means there is no
// program, so the loader halts instead of executing blank memory.
//
// Nothing here returns an error to the caller. Every failure (no card, no
// file, short image, a page that would not program) degrades to running
// whatever program memory holds, or halting. Report records what happened.
//
// The non-returning jump itself is not in this package: Execute hands the
// decision to a CPU, whose device implementation is the one place that leaves
// Go's control flow.
package boot
