package main

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// writeFileAtomically writes data to path by first writing to a uniquely
// named temporary file in the same directory and then renaming it into
// place, so a concurrent reader or a crash mid-write never observes a
// partially written file.
func writeFileAtomically(path string, data []byte) error {
	randomUUID, err := uuid.NewRandom()
	if err != nil {
		return errors.Wrap(err, "unable to generate UUID for temporary file")
	}

	dir := filepath.Dir(path)
	temporary := filepath.Join(dir, "."+filepath.Base(path)+"."+randomUUID.String()+".tmp")

	if err := os.WriteFile(temporary, data, 0o644); err != nil {
		return errors.Wrap(err, "unable to write temporary file")
	}
	if err := os.Rename(temporary, path); err != nil {
		os.Remove(temporary)
		return errors.Wrap(err, "unable to rename temporary file into place")
	}
	return nil
}
