package backup

import "sort"

// missingFrom returns the members of want that are not in have, in the
// order of want.
func missingFrom(want, have []uint32) []uint32 {
	present := make(map[uint32]struct{}, len(have))
	for _, uid := range have {
		present[uid] = struct{}{}
	}
	var out []uint32
	for _, uid := range want {
		if _, ok := present[uid]; !ok {
			out = append(out, uid)
		}
	}
	return out
}

func ascending(uids []uint32) []uint32 {
	out := append([]uint32(nil), uids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
