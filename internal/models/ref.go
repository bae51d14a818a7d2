package models

// UnknownUserName is shown for references that could not be resolved.
const UnknownUserName = "Unknown"

// UserRef is a reference to a user that may or may not have been joined with the
// user record. Implementations are UnresolvedUser and ResolvedUser.
type UserRef interface {
	RefID() string
	userRef()
}

// UnresolvedUser is a reference carrying only the ID.
type UnresolvedUser struct {
	ID string
}

// ResolvedUser is a reference joined with the user's public profile.
type ResolvedUser struct {
	ID    string
	Name  string
	Email string
}

func (u UnresolvedUser) RefID() string { return u.ID }
func (u ResolvedUser) RefID() string   { return u.ID }

func (UnresolvedUser) userRef() {}
func (ResolvedUser) userRef()   {}

// DisplayName returns the name for ref, or UnknownUserName when it is unresolved.
func DisplayName(ref UserRef) string {
	switch r := ref.(type) {
	case ResolvedUser:
		if r.Name != "" {
			return r.Name
		}
		return UnknownUserName
	default:
		return UnknownUserName
	}
}

// Resolve looks id up in users and returns the matching reference.
func Resolve(id string, users map[string]*User) UserRef {
	if u, ok := users[id]; ok && u != nil {
		return u.Ref()
	}
	return UnresolvedUser{ID: id}
}
