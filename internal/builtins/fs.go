package builtins

import "github.com/reactive-lang/reactive/internal/value"

// FileRead implements file_read(path) -> string | 0 (spec §6): returns a
// fresh Char-array value holding the file's contents, or Int(0) if the read
// failed for any reason (the language surface has no error channel for
// these primitives beyond the sentinel value).
func FileRead(fs HostFS, heap *value.Heap, path string) value.Value {
	data, err := fs.ReadFile(path)
	if err != nil {
		return value.Int(0)
	}
	return NewStringArray(heap, string(data))
}

// FileWrite implements file_write(path, contents) -> int: 1 on success, 0
// on failure.
func FileWrite(fs HostFS, path, contents string) value.Value {
	if err := fs.WriteFile(path, []byte(contents)); err != nil {
		return value.Int(0)
	}
	return value.Int(1)
}

// FileExists implements file_exists(path) -> 0|1.
func FileExists(fs HostFS, path string) value.Value {
	if fs.Exists(path) {
		return value.Int(1)
	}
	return value.Int(0)
}

// FileRemove implements file_remove(path) -> 0|1.
func FileRemove(fs HostFS, path string) value.Value {
	if err := fs.Remove(path); err != nil {
		return value.Int(0)
	}
	return value.Int(1)
}
