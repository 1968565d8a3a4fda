// templates/registry.go
package templates

import (
	"io/fs"
	"sync"
)

// SharedSet is the name of the set holding the common layout.
const SharedSet = "shared"

// Set is one package's embedded templates.
type Set struct {
	// Name is SharedSet for the layout, otherwise used in logs only.
	Name     string
	FS       fs.FS
	Patterns []string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Set{}
)

// Register records s for the next Boot. Feature packages call it from
// init(). Registering a name again replaces the earlier set.
func Register(s Set) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name] = s
}

func registered() []Set {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Set, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	return out
}
