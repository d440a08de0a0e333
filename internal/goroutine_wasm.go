//go:build wasm

package internal

// goid has no wasm support, every goroutine reports the same id.
// The observer guard still catches overlapping waits, it just can't name the holder.
func goroutineID() int64 {
	return 1
}
