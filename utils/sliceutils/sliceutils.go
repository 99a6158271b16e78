package sliceutils

// RemoveDuplicates removes any duplicate entries from a list, keeping the
// first occurrence of each value in its original position.
func RemoveDuplicates[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	var out []T
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ContainsAny reports whether any of the needles is present in the list.
func ContainsAny[T comparable](in []T, needles ...T) bool {
	for _, v := range in {
		for _, n := range needles {
			if v == n {
				return true
			}
		}
	}
	return false
}
