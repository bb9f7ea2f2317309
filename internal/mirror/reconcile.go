package mirror

import "sort"

// Diff computes the actions required to make the remote snapshot match the
// local one. Create and Modify both upload; Create additionally ensures the
// remote parent directory exists. Deletes are emitted only when the
// descriptor has removal enabled. Output is sorted by path for stable logs.
func Diff(d *Descriptor, local, remote Snapshot) []*Action {
	actions := make([]*Action, 0)

	for _, rel := range sortedPaths(local) {
		digest, ok := remote[rel]
		switch {
		case !ok:
			actions = append(actions, NewAction(d, rel, OpCreate))
		case digest != local[rel]:
			actions = append(actions, NewAction(d, rel, OpModify))
		}
	}

	if d.Removal {
		for _, rel := range sortedPaths(remote) {
			if _, ok := local[rel]; !ok {
				actions = append(actions, NewAction(d, rel, OpDelete))
			}
		}
	}

	return actions
}

func sortedPaths(s Snapshot) []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
