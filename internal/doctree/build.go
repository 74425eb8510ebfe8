package doctree

import "sort"

// Build rebuilds the chapter forest implied by level and index.
//
// The lowest level forms the roots. Every record on a deeper level hangs off the
// last record of the previous level whose index is strictly smaller; a record with
// no such predecessor is promoted to a root.
func Build(records []ChapterRecord) []*Node {
	if len(records) == 0 {
		return []*Node{}
	}

	byLevel := make(map[int][]*Node)
	for _, rec := range records {
		n := &Node{
			UID:        rec.UID,
			Title:      rec.Title,
			Children:   []*Node{},
			Highlights: []Highlight{},
			Notes:      []Note{},
			level:      rec.Level,
			idx:        rec.Idx,
		}
		byLevel[rec.Level] = append(byLevel[rec.Level], n)
	}

	levels := make([]int, 0, len(byLevel))
	for lvl, nodes := range byLevel {
		levels = append(levels, lvl)
		sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].idx < nodes[j].idx })
	}
	sort.Ints(levels)

	roots := append([]*Node{}, byLevel[levels[0]]...)
	for i := 1; i < len(levels); i++ {
		prev := byLevel[levels[i-1]]
		for _, n := range byLevel[levels[i]] {
			// First position in prev whose idx is >= n.idx; the parent sits just before it.
			pos := sort.Search(len(prev), func(k int) bool { return prev[k].idx >= n.idx })
			if pos == 0 {
				roots = append(roots, n)
				continue
			}
			parent := prev[pos-1]
			parent.Children = append(parent.Children, n)
		}
	}
	return roots
}

// Walk visits every node depth-first, parents before children.
func Walk(forest []*Node, fn func(*Node)) {
	for _, n := range forest {
		fn(n)
		Walk(n.Children, fn)
	}
}
