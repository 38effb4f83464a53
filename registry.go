package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const defaultSysBlock = "/sys/block"

// Registry is the read capability the disk enumerator needs from the
// kernel's block-device registry.
type Registry interface {
	// Entries lists the child names of the registry root in iteration order.
	Entries() ([]string, error)
	// FirstByte returns the first byte of the attribute file of an entry,
	// attribute being a slash separated path relative to the entry.
	FirstByte(entry, attribute string) (byte, error)
}

// sysfsRegistry reads a sysfs-like directory tree such as /sys/block
type sysfsRegistry struct {
	root string
}

func newSysfsRegistry(root string) *sysfsRegistry {
	if root == "" {
		root = defaultSysBlock
	}
	return &sysfsRegistry{root: root}
}

// Entries lists the root unsorted, in the order the kernel returns it
func (r *sysfsRegistry) Entries() ([]string, error) {
	f, err := os.Open(r.root)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.root, err)
	}
	return names, nil
}

func (r *sysfsRegistry) FirstByte(entry, attribute string) (byte, error) {
	path := filepath.Join(r.root, entry, filepath.FromSlash(attribute))
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var buf [1]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return buf[0], nil
}

// memEntry is one device of an in-memory registry
type memEntry struct {
	name       string
	attributes map[string]string
}

// memRegistry is an ordered, in-memory registry for fixtures
type memRegistry struct {
	entries []memEntry
	listErr error
}

func newMemRegistry() *memRegistry {
	return &memRegistry{}
}

// add appends an entry; attributes are given as path/value pairs.
func (m *memRegistry) add(name string, attrs ...string) *memRegistry {
	e := memEntry{name: name, attributes: make(map[string]string)}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.attributes[attrs[i]] = attrs[i+1]
	}
	m.entries = append(m.entries, e)
	return m
}

func (m *memRegistry) remove(name string) {
	for i, e := range m.entries {
		if e.name == name {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

func (m *memRegistry) Entries() ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		names = append(names, e.name)
	}
	return names, nil
}

func (m *memRegistry) FirstByte(entry, attribute string) (byte, error) {
	for _, e := range m.entries {
		if e.name != entry {
			continue
		}
		value, ok := e.attributes[attribute]
		if !ok {
			return 0, fmt.Errorf("%s/%s: %w", entry, attribute, os.ErrNotExist)
		}
		if len(value) == 0 {
			return 0, fmt.Errorf("%s/%s: %w", entry, attribute, io.EOF)
		}
		return value[0], nil
	}
	return 0, fmt.Errorf("%s: %w", entry, os.ErrNotExist)
}
