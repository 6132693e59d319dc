package audit

import "fmt"

// ActorType discriminates the two kinds of actor that can act on a commitment.
type ActorType string

const (
	ActorUser   ActorType = "USER"
	ActorClient ActorType = "CLIENT"
)

// Actor is either a UserActor or a ClientActor. The set is closed.
type Actor interface {
	Type() ActorType
	String() string
	isActor()
}

// UserActor is an authenticated member of the organization.
type UserActor struct {
	UserID string
}

func (UserActor) Type() ActorType  { return ActorUser }
func (a UserActor) String() string { return "user:" + a.UserID }
func (UserActor) isActor()         {}

// ClientActor is an unauthenticated client acting through a secure link.
type ClientActor struct {
	Name  string
	Email string
}

func (ClientActor) Type() ActorType  { return ActorClient }
func (a ClientActor) String() string { return "client:" + a.Email }
func (ClientActor) isActor()         {}

// ActorColumns flattens an actor into its persisted columns.
func ActorColumns(a Actor) (typ ActorType, userID, name, email *string, err error) {
	switch v := a.(type) {
	case UserActor:
		id := v.UserID
		return ActorUser, &id, nil, nil, nil
	case ClientActor:
		n, e := v.Name, v.Email
		return ActorClient, nil, &n, &e, nil
	default:
		return "", nil, nil, nil, fmt.Errorf("audit: unknown actor %T", a)
	}
}

// ActorFromColumns rebuilds an actor from its persisted columns.
func ActorFromColumns(typ ActorType, userID, name, email *string) (Actor, error) {
	switch typ {
	case ActorUser:
		return UserActor{UserID: deref(userID)}, nil
	case ActorClient:
		return ClientActor{Name: deref(name), Email: deref(email)}, nil
	default:
		return nil, fmt.Errorf("audit: unknown actor type %q", typ)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
