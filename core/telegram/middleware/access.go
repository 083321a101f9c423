package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines who passes the admin gate.
type AdminOptions struct {
	AdminID int64
	// IsAdmin, when set, admits further users, such as holders of an admin role.
	IsAdmin  func(userID int64) bool
	OnReject tele.HandlerFunc
}

func (o AdminOptions) admits(u *tele.User) bool {
	if o.AdminID == 0 && o.IsAdmin == nil {
		return true
	}
	if u == nil {
		return false
	}
	if o.AdminID != 0 && u.ID == o.AdminID {
		return true
	}
	return o.IsAdmin != nil && o.IsAdmin(u.ID)
}

// AdminOnlyMiddleware lets only admins reach next. With no admin configured
// the gate is open.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.admits(c.Sender()) {
				return next(c)
			}
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
