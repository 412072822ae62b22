package main

import (
	"fmt"

	"github.com/vcsforge/histpack"
)

func cmdLs(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: histdump ls <dir>")
	}
	dir := args[0]

	store, err := histpack.OpenStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("%d pack pair(s) under %s\n", store.Len(), dir)
	for _, r := range store.Readers() {
		count := r.SectionCount()
		fmt.Printf("  %s  %d file section(s)\n", r.Path(), count)
	}
	return nil
}
