package ledger

// IsDuplicate reports whether tid was already imported. Messages without a
// carrier id are never duplicates.
func IsDuplicate(tid *string, known map[string]struct{}) bool {
	if tid == nil || *tid == "" {
		return false
	}
	_, ok := known[*tid]
	return ok
}

// Guard tracks the ids known for one user during a batch, including ids
// accepted earlier in the same batch.
type Guard struct {
	known map[string]struct{}
}

func NewGuard(ids []string) *Guard {
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return &Guard{known: known}
}

// Check reports whether tid is a duplicate and, if not, remembers it.
func (g *Guard) Check(tid *string) bool {
	if IsDuplicate(tid, g.known) {
		return true
	}
	if tid != nil && *tid != "" {
		g.known[*tid] = struct{}{}
	}
	return false
}
