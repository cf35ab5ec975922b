package config

// Store persists non-secret config keys for one platform. Values are kept
// as strings and parsed against their keySpec when loaded.
type Store interface {
	Lookup(key string) (val string, ok bool, err error)
	Save(key, val string) error
	Remove(key string) error
	// Location names where values live, for `keyweave config show`.
	Location() string
}

// StoreLocation reports where the platform store keeps config values.
func StoreLocation() string {
	return newPlatformStore().Location()
}
