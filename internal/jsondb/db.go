// Package jsondb implements a simple database of JSON documents, keyed by
// name and stored in one directory. Writes are atomic: a document is either
// fully written or not at all.
package jsondb

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
)

type JSONDatabase struct {
	dir  string
	perm os.FileMode
}

// New creates a JSONDatabase backed by the given directory. Documents are
// written with the given permissions.
func New(dir string, perm os.FileMode) *JSONDatabase {
	return &JSONDatabase{dir, perm}
}

// Read reads the document with the given name into document and returns
// whether it exists. A missing document is not an error.
func (db *JSONDatabase) Read(name string, document interface{}) (bool, error) {
	f, err := os.Open(path.Join(db.dir, name+".json"))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	defer f.Close()

	if document != nil {
		err = json.NewDecoder(f).Decode(document)
		if err != nil {
			return true, fmt.Errorf("error reading document '%s': %v", name, err)
		}
	}

	return true, nil
}

// Write stores document under the given name.
func (db *JSONDatabase) Write(name string, document interface{}) error {
	return writeFileAtomically(db.dir, name+".json", db.perm, func(f *os.File) error {
		return json.NewEncoder(f).Encode(document)
	})
}

// writeFileAtomically writes to a temporary file in dir and renames it to
// filename only after the write function succeeded, so a crash or write
// error never leaves a partial document behind.
func writeFileAtomically(dir, filename string, perm os.FileMode, write func(*os.File) error) error {
	tmpfile, err := os.CreateTemp(dir, filename+"-*.tmp")
	if err != nil {
		return err
	}

	// Remove the temporary file on every failure path below.
	abort := func(err error) error {
		tmpfile.Close()
		os.Remove(tmpfile.Name())
		return err
	}

	if err := tmpfile.Chmod(perm); err != nil {
		return abort(err)
	}

	if err := write(tmpfile); err != nil {
		return abort(err)
	}

	if err := tmpfile.Close(); err != nil {
		return abort(err)
	}

	if err := os.Rename(tmpfile.Name(), path.Join(dir, filename)); err != nil {
		return abort(err)
	}

	return nil
}
