package main

import (
	"fmt"

	"github.com/disiqueira/gotree/v3"

	"github.com/fruitsalade/vaultbox/internal/storage"
)

// renderTree draws a listing returned by zones.Manager.List. Folders end in a
// slash; files show their formatted size.
func renderTree(label string, entries []storage.Entry) string {
	root := gotree.New(label)
	addEntries(root, entries)
	return root.Print()
}

func addEntries(parent gotree.Tree, entries []storage.Entry) {
	for _, e := range entries {
		if e.IsFolder() {
			addEntries(parent.Add(e.Name+"/"), e.Children)
			continue
		}
		parent.Add(fmt.Sprintf("%s (%s)", e.Name, e.Size))
	}
}
