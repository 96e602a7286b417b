package core

import "fmt"

// KeyPolicy derives the partition key for an event.
type KeyPolicy interface {
	Key(ev PageEvent) string
}

// KeyFunc adapts a function to KeyPolicy.
type KeyFunc func(ev PageEvent) string

func (f KeyFunc) Key(ev PageEvent) string { return f(ev) }

var (
	// NameKey keys by page name, so views of one page share a partition.
	NameKey KeyPolicy = KeyFunc(func(ev PageEvent) string { return ev.Name })

	// NoKey leaves partitioning to the broker.
	NoKey KeyPolicy = KeyFunc(func(PageEvent) string { return "" })

	// IDKey keys by event id, spreading events evenly.
	IDKey KeyPolicy = KeyFunc(func(ev PageEvent) string { return ev.ID })
)

// ParseKeyPolicy resolves a configured policy name: "name", "none" or "id".
func ParseKeyPolicy(s string) (KeyPolicy, error) {
	switch s {
	case "", "name":
		return NameKey, nil
	case "none":
		return NoKey, nil
	case "id":
		return IDKey, nil
	}
	return nil, fmt.Errorf("eventgate: unknown key policy %q", s)
}
