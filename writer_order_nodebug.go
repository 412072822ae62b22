//go:build !histpack_debug

package histpack

// assertChildBeforeParents is a no-op outside histpack_debug builds; see
// writer_order_debug.go.
func assertChildBeforeParents(w *Writer, name []byte, node, p1, p2 NodeID) {}
