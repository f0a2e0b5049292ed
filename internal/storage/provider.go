// Package storage provides atomic file storage for local client state
// (wallet keystores).
package storage

// Provider is the interface for file operations relative to a root directory.
type Provider interface {
	// Read returns the raw bytes of the file at name.
	Read(name string) ([]byte, error)
	// Write atomically replaces the file at name with content.
	Write(name string, content []byte) error
	// Exists reports whether a regular file exists at name.
	Exists(name string) bool
	// Path returns the absolute path of name.
	Path(name string) (string, error)
}
