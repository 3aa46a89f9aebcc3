// Package checkpoint saves how far a harvest got through each account's
// timeline so an interrupted harvest resumes at the page it stopped on.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/describer/checkpoints/
//   - macOS: ~/Library/Application Support/describer/checkpoints/
//   - Windows: %APPDATA%/describer/checkpoints/
//
// The files are saved atomically and carry a version for future formats.
package checkpoint
