// Package stores provides the SQLite persistence layer: an imported copy of
// package repositories that serves as an engine.PackageDatabase, and the
// history of recorded resolutions. The schema is managed with embedded
// migrations.
package stores
