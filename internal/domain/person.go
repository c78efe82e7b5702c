package domain

// Person is the read-only view of a registered user.
type Person struct {
	ID       string
	FullName string
	Email    string
}
