package services

// Principal is the authenticated caller. Every service operation takes one;
// admin-only operations check it before touching storage.
type Principal struct {
	UserID  int64
	IsAdmin bool
}

func (p Principal) RequireAdmin() error {
	if !p.IsAdmin {
		return ErrForbidden
	}
	return nil
}
