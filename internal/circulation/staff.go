package circulation

import "github.com/aoideee/libmgs/internal/data"

// Staff is the capability every catalog and circulation mutation requires.
// The zero value grants nothing; only Authorize hands out a usable one.
type Staff struct {
	user *data.User
}

// Authorize grants the staff capability to a staff account.
func Authorize(user *data.User) (Staff, error) {
	if user == nil || user.IsAnonymous() || !user.IsStaff {
		return Staff{}, ErrForbidden
	}
	return Staff{user: user}, nil
}

// User returns the account the capability was granted to.
func (s Staff) User() *data.User { return s.user }

func (s Staff) check() error {
	if s.user == nil {
		return ErrForbidden
	}
	return nil
}
