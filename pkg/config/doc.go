// Package config loads the deplist configuration file.
//
// A configuration names the repository files to load, the SQLite database
// used by the import and history commands, the environment (USE flags,
// masks, accepted keywords and licenses), resolver toggles and telemetry.
// YAML, JSON and CUE files are accepted:
//
//	repositories:
//	  - path: repos/gentoo.yaml
//	  - path: repos/installed.yaml
//	environment:
//	  use: [ssl, -X]
//	  accept_keywords: [amd64]
//	resolver:
//	  rdepend_post: as_needed
//	  drop_self_circular: true
//
// CUE files are unified with the built-in #Config schema before decoding,
// so unknown fields and type errors are reported with file positions. All
// formats are then checked with struct tag validation. Relative paths are
// resolved against the configuration file's directory.
package config
