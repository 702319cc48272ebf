// Package output renders command results for the noter CLI.
//
// Every command writes through a Printer, which emits either indented JSON
// (--json) or lipgloss-styled text. Styling is dropped when the writer is not
// a terminal or --color=never is given.
//
//	printer := output.NewPrinter(cmd.OutOrStdout(), isJSONMode(cmd), useColor(cmd))
//	printer.Success(map[string]any{"message": "Created 2025-09-01-02101-lecture.typ"})
//
// # Exit Codes
//
//	output.ExitSuccess     // 0
//	output.ExitUserError   // 1: bad flags, unknown variant, missing variable
//	output.ExitSystemError // 2: no source, unresolved version, fetch or cache failure, I/O
//	output.ExitConflict    // 3: note file already exists
//
// FromError maps engine error kinds onto these codes so commands can return
// errors unchanged and let main decide the exit status.
package output
