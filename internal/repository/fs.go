package repository

import "github.com/spf13/afero"

// FileSystemRepository is the filesystem boundary used for changelog, state
// and output files.

type FileSystemRepository interface {
	afero.Fs
}
