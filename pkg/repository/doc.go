// Package repository provides an in-memory package database for the
// resolver.
//
// A Repository holds the versions of packages loaded from a YAML or CUE
// file. A Database layers several repositories and implements
// engine.PackageDatabase:
//
//	loader := repository.NewLoader(logger)
//	repo, err := loader.LoadFile("testdata/gentoo.yaml")
//	if err != nil {
//	    return err
//	}
//	db := repository.NewDatabase(repo)
//
// Repositories listed earlier take precedence over later ones when two of
// them carry the same version. A repository marked installed supplies
// candidates flagged as already installed.
package repository
