package emit

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/ownc/internal/codegen"
)

// ErrUnknownBackend is returned by Lookup for unregistered names.
var ErrUnknownBackend = errors.New("unknown backend")

// Backend renders a planned unit as target source text.
type Backend interface {
	Name() string
	Emit(u *codegen.Unit) (string, error)
}

var backends = map[string]Backend{}

func init() {
	Register(Rust{})
	Register(JS{})
}

// Register adds a backend under its name. Registering a name twice panics.
func Register(b Backend) {
	if _, dup := backends[b.Name()]; dup {
		panic(fmt.Sprintf("emit: backend %q registered twice", b.Name()))
	}
	backends[b.Name()] = b
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, error) {
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownBackend, name, Names())
	}
	return b, nil
}

// Names returns the registered backend names in sorted order.
func Names() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
