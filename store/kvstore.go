package store

// KVStoreEachFunc is the function that gets called on each item in the Each function
type KVStoreEachFunc func(key, value []byte)

// KVStore defines an embedded key/value store database interface.
type KVStore interface {
	Get(namespace, key []byte) (value []byte, err error)
	Set(namespace, key, value []byte) error
	Count(namespace, prefix []byte) (int, error)
	Remove(namespace, key []byte) error
	RemovePrefix(namespace, prefix []byte) error
	Each(namespace []byte, prefix []byte, callback KVStoreEachFunc) error
	ErrNotFound() error
	Close() error
}

// Set is a durable set of strings.
// Implementations must be safe for concurrent use.
type Set interface {
	// Contains reports whether member is in the set
	Contains(member string) (bool, error)
	// Add inserts member unless it is already present
	Add(member string) error
	// Remove deletes member. Removing a missing member is not an error
	Remove(member string) error
	// Members returns all members in storage order
	Members() ([]string, error)
	// Clear removes all members
	Clear() error
}
