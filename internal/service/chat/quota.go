package chat

// GuestMessageLimit caps user turns for unauthenticated sessions, guarding the
// inference backend from unmetered anonymous use.
const GuestMessageLimit = 5

// CheckAllowed gates a send attempt. It is a pure function of its inputs:
// guests are denied once limit user turns exist, authenticated users never
// are. A limit of zero or less means the default cap.
func CheckAllowed(isGuest bool, userTurns, limit int) error {
	if !isGuest {
		return nil
	}
	if limit <= 0 {
		limit = GuestMessageLimit
	}
	if userTurns >= limit {
		return ErrQuotaExceeded
	}
	return nil
}
