// Package mmap provides read-only memory-mapped file access.
//
// The local blob store maps segment files instead of reading them through
// the page cache twice.
//
//	m, err := mmap.Open("seg-00000001.seg")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes() // valid until Close
//
// On Unix the mapping is created with mmap(2). On Windows the file is read
// into memory.
package mmap
