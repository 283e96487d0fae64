package store

import (
	"errors"
	"fmt"
	"sync"
)

// KVSet keeps a Set in one namespace of a KVStore.
// Members are the keys, values are empty.
type KVSet struct {
	kv        KVStore
	namespace []byte
	mutex     sync.Mutex
}

// NewKVSet creates a set that lives in the given namespace of kv
func NewKVSet(kv KVStore, namespace string) *KVSet {
	return &KVSet{
		kv:        kv,
		namespace: []byte(namespace),
	}
}

// Contains reports whether member is in the set
func (s *KVSet) Contains(member string) (bool, error) {
	if member == "" {
		return false, nil
	}
	return s.contains(member)
}

// Add inserts member unless it is already present
func (s *KVSet) Add(member string) error {
	if member == "" {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	ok, err := s.contains(member)
	if err != nil {
		return fmt.Errorf("%s: lookup %q: %w", s.namespace, member, err)
	}
	if ok {
		return nil
	}

	return s.kv.Set(s.namespace, []byte(member), []byte{})
}

// Remove deletes member from the set
func (s *KVSet) Remove(member string) error {
	if member == "" {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.kv.Remove(s.namespace, []byte(member))
}

// Members returns all members of the set in key order
func (s *KVSet) Members() ([]string, error) {
	members := make([]string, 0)

	err := s.kv.Each(s.namespace, []byte{}, func(key, _ []byte) {
		members = append(members, string(key))
	})
	if err != nil {
		return nil, err
	}

	return members, nil
}

// Clear removes all members of the set
func (s *KVSet) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.kv.RemovePrefix(s.namespace, []byte{})
}

func (s *KVSet) contains(member string) (bool, error) {
	_, err := s.kv.Get(s.namespace, []byte(member))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, s.kv.ErrNotFound()):
		return false, nil
	}
	return false, err
}
