package steam

import (
	"fmt"
	"sort"
	"sync"
)

// Platform bundles the two handles a driver provides.
type Platform struct {
	Client      Client
	Coordinator GameCoordinator
	// Close releases driver resources. May be nil.
	Close func() error
}

// DriverConfig is passed to a driver factory.
type DriverConfig struct {
	Options map[string]string
}

// Factory builds a Platform.
type Factory func(cfg DriverConfig) (*Platform, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// Register makes a driver available by name. It panics on duplicates, like
// database/sql.Register.
func Register(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if f == nil {
		panic("steam: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("steam: Register called twice for driver " + name)
	}
	drivers[name] = f
}

// Open builds a Platform with the named driver.
func Open(name string, cfg DriverConfig) (*Platform, error) {
	driversMu.RLock()
	f, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("steam: unknown driver %q (registered: %v)", name, Drivers())
	}
	return f(cfg)
}

// Drivers returns the registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for n := range drivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
