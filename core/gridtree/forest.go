package gridtree

import (
	"fmt"
	"io"
	"strings"

	"github.com/kilianp07/flexmarket/core/model"
)

// LocationMarker is appended to nodes open for trade.
const LocationMarker = "(Gridlocation)"

// BuildForest arranges nodes into trees using links as parent to child edges.
// Roots are the nodes no link points to, kept in input order. Links to unknown
// nodes are ignored and a link closing a cycle on the current path is cut.
func BuildForest(nodes []model.GridNode, links []model.GridNodeLink) ([]*TreeNode[model.GridNode], error) {
	byID := make(map[string][]model.GridNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = append(byID[n.ID], n)
	}
	targeted := make(map[string]bool, len(links))
	for _, l := range links {
		targeted[l.TargetGridNodeID] = true
	}

	var roots []*TreeNode[model.GridNode]
	for _, n := range nodes {
		if targeted[n.ID] {
			continue
		}
		root := New(n)
		if err := addChildren(root, byID, links, map[string]bool{n.ID: true}); err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return roots, nil
}

func addChildren(parent *TreeNode[model.GridNode], byID map[string][]model.GridNode, links []model.GridNodeLink, path map[string]bool) error {
	for _, l := range links {
		if l.SourceGridNodeID != parent.Value.ID {
			continue
		}
		matches := byID[l.TargetGridNodeID]
		switch {
		case len(matches) == 0:
			continue
		case len(matches) > 1:
			return fmt.Errorf("link target %s matches %d grid nodes", l.TargetGridNodeID, len(matches))
		}
		if path[l.TargetGridNodeID] {
			continue
		}
		child := parent.AddChild(matches[0])
		path[child.Value.ID] = true
		err := addChildren(child, byID, links, path)
		delete(path, child.Value.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// Render writes every tree of the forest, one node per line indented by its
// depth, followed by a blank line.
func Render(w io.Writer, nodes []model.GridNode, links []model.GridNodeLink, locations []model.GridLocation) error {
	roots, err := BuildForest(nodes, links)
	if err != nil {
		return err
	}
	open := make(map[string]bool, len(locations))
	for _, l := range locations {
		open[l.GridNodeID] = true
	}
	var b strings.Builder
	for _, root := range roots {
		root.Traverse(func(n model.GridNode, depth int) {
			b.WriteString(strings.Repeat(" ", depth))
			b.WriteString(n.Name)
			if open[n.ID] {
				b.WriteString(" " + LocationMarker)
			}
			b.WriteString("\n")
		})
		b.WriteString("\n")
	}
	_, err = io.WriteString(w, b.String())
	return err
}
