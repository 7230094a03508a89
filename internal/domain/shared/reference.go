package shared

// Reference is a resolved foreign key: the canonical identifier plus the
// display name looked up for it. Unresolvable keys carry a sentinel name.
type Reference struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
