package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

const fileSetPerm fs.FileMode = 0o644

// FileSet is a Set stored in a text file with one member per line.
// Lookups scan the file. Writers are serialized, additions append a single
// line while removals replace the whole file atomically.
type FileSet struct {
	path  string
	mutex sync.RWMutex
}

// NewFileSet opens the set stored at path, creating an empty file if it does not exist yet
func NewFileSet(path string) (*FileSet, error) {
	fh, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, fileSetPerm)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	fh.Close()

	return &FileSet{
		path: path,
	}, nil
}

// Path returns the location of the backing file
func (s *FileSet) Path() string {
	return s.path
}

// Contains reports whether member is in the set
func (s *FileSet) Contains(member string) (bool, error) {
	member = strings.TrimSpace(member)
	if member == "" {
		return false, nil
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.contains(member)
}

// Add appends member to the file unless it is already present
func (s *FileSet) Add(member string) error {
	member = strings.TrimSpace(member)
	if member == "" {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	found, err := s.contains(member)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	fh, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, fileSetPerm)
	if err != nil {
		return fmt.Errorf("open %s for appending: %w", s.path, err)
	}

	line := member + "\n"
	terminated, err := endsWithNewline(fh)
	if err == nil {
		if !terminated {
			line = "\n" + line
		}
		_, err = fh.WriteString(line)
	}
	if err == nil {
		err = fh.Sync()
	}
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("append to %s: %w", s.path, err)
	}

	return nil
}

// Remove rewrites the file without member
func (s *FileSet) Remove(member string) error {
	member = strings.TrimSpace(member)
	if member == "" {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	members, err := s.members()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	removed := false
	for _, m := range members {
		if m == member {
			removed = true
			continue
		}
		buf.WriteString(m)
		buf.WriteByte('\n')
	}

	if !removed {
		return nil
	}

	return s.replace(buf.Bytes())
}

// Members returns all members in file order
func (s *FileSet) Members() ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.members()
}

// Clear truncates the set to zero members
func (s *FileSet) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.replace([]byte{})
}

// Destroy removes the backing file
func (s *FileSet) Destroy() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileSet) replace(data []byte) error {
	if err := renameio.WriteFile(s.path, data, fileSetPerm); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileSet) contains(member string) (bool, error) {
	found := false
	err := s.scan(func(line string) bool {
		found = line == member
		return !found
	})

	return found, err
}

func (s *FileSet) members() ([]string, error) {
	members := make([]string, 0)
	err := s.scan(func(line string) bool {
		members = append(members, line)
		return true
	})

	return members, err
}

// scan calls fn for every non-empty trimmed line until fn returns false
func (s *FileSet) scan(fn func(line string) bool) error {
	fh, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !fn(line) {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	return nil
}

// endsWithNewline reports whether fh is empty or its last byte is a newline.
// Files edited by hand often lack the final line break.
func endsWithNewline(fh *os.File) (bool, error) {
	info, err := fh.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return true, nil
	}

	last := make([]byte, 1)
	if _, err := fh.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] == '\n', nil
}
