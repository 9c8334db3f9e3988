package model

import (
	"fmt"
	"strings"
)

// ID is an opaque, stable identifier for a film (its slug), a user
// (the username) or a named collection (see ListID).
type ID string

// listSeparator joins owner and list name inside a collection ID.
const listSeparator = "/list/"

// ListID builds the identifier of a user's named list.
//
// Example:
//
//	ListID("dave", "top-100") == "dave/list/top-100"
func ListID(owner, name string) ID {
	return ID(owner + listSeparator + name)
}

// SplitList returns the owner and list name encoded in a collection ID.
func (id ID) SplitList() (owner, name string, err error) {
	owner, name, ok := strings.Cut(string(id), listSeparator)
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("not a list identifier: %q", id)
	}
	return owner, name, nil
}

// IsList reports whether the ID names a user's list.
func (id ID) IsList() bool {
	_, _, err := id.SplitList()
	return err == nil
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}
