package auth

// AdminChecker answers whether a Telegram user is an operator. The allow-list is fixed at startup.
type AdminChecker struct {
	ordered []int64
	allowed map[int64]struct{}
}

// NewAdminChecker creates a checker over ids, keeping their order and dropping duplicates.
func NewAdminChecker(ids []int64) *AdminChecker {
	ac := &AdminChecker{allowed: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		if _, dup := ac.allowed[id]; dup {
			continue
		}
		ac.allowed[id] = struct{}{}
		ac.ordered = append(ac.ordered, id)
	}
	return ac
}

// IsAdmin reports whether userID is on the allow-list.
func (ac *AdminChecker) IsAdmin(userID int64) bool {
	_, ok := ac.allowed[userID]
	return ok
}

// Admins returns the operator ids in configuration order.
func (ac *AdminChecker) Admins() []int64 {
	return append([]int64(nil), ac.ordered...)
}
