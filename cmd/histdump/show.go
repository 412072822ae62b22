package main

import (
	"encoding/hex"
	"fmt"

	"github.com/vcsforge/histpack"
)

func cmdShow(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: histdump show <dir> <name> <hex-node>")
	}
	dir, name, hexNode := args[0], args[1], args[2]

	node, err := parseNode(hexNode)
	if err != nil {
		return err
	}

	store, err := histpack.OpenStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	p1, p2, err := store.Parents([]byte(name), node)
	if err != nil {
		return err
	}
	link, err := store.Linknode([]byte(name), node)
	if err != nil {
		return err
	}
	fmt.Printf("node=%s\np1=%s\np2=%s\nlinknode=%s\n", node, p1, p2, link)

	ancestors, err := store.Ancestors([]byte(name), node)
	if err != nil {
		return err
	}
	fmt.Printf("ancestors (%d):\n", len(ancestors))
	for n, rec := range ancestors {
		fmt.Printf("  %s  p1=%s p2=%s linknode=%s\n", n, rec.P1, rec.P2, rec.Linknode)
	}
	return nil
}

func parseNode(s string) (histpack.NodeID, error) {
	var n histpack.NodeID
	b, err := hex.DecodeString(s)
	if err != nil {
		return n, fmt.Errorf("invalid hex node %q: %w", s, err)
	}
	if len(b) != histpack.NodeSize {
		return n, fmt.Errorf("node %q decodes to %d bytes, want %d", s, len(b), histpack.NodeSize)
	}
	copy(n[:], b)
	return n, nil
}
