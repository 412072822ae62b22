//go:build histpack_debug

package histpack

import "fmt"

// assertChildBeforeParents panics if either parent of a just-added record
// was already written earlier in the same section: that parent then
// precedes its child on disk, violating the children-before-parents
// ordering Ancestors' single forward scan depends on. Only compiled into
// builds tagged histpack_debug; the writer itself never verifies this in
// production (that remains the caller's documented obligation).
func assertChildBeforeParents(w *Writer, name []byte, node, p1, p2 NodeID) {
	if w.seenInSection == nil {
		w.seenInSection = make(map[NodeID]struct{})
	}
	for _, parent := range [2]NodeID{p1, p2} {
		if parent.IsNull() {
			continue
		}
		if _, ok := w.seenInSection[parent]; ok {
			panic(fmt.Sprintf("histpack: %q node %s references parent %s already written earlier in this section", name, node, parent))
		}
	}
	w.seenInSection[node] = struct{}{}
}
