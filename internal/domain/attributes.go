package domain

// Optional holds a value that may be absent.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Or returns the value if present, otherwise def.
func (o Optional[T]) Or(def T) T {
	if o.Set {
		return o.Value
	}
	return def
}

// Ptr returns a pointer to a copy of the value, or nil when absent.
func (o Optional[T]) Ptr() *T {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

// Attributes are the per-connection values taken from the handshake path.
type Attributes struct {
	Scope    Optional[string]
	Channel  Optional[string]
	Username Optional[string]
}

// Resolved is the set of attributes with defaults applied.
type Resolved struct {
	Scope    string
	Channel  string
	Username string
}

// Resolve applies the public/global/user defaults.
func (a Attributes) Resolve() Resolved {
	return Resolved{
		Scope:    a.Scope.Or(DefaultScope),
		Channel:  a.Channel.Or(DefaultChannel),
		Username: a.Username.Or(DefaultUsername),
	}
}

// RoomKey is the room the resolved attributes belong to.
func (r Resolved) RoomKey() string {
	return RoomKey(r.Scope, r.Channel)
}
