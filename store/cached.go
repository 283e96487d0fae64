/*
	botfilter - an email engagement bot filter by ScraperWall
	Copyright (C) 2021 ScraperWall, Tobias von Dewitz <tobias@scraperwall.com>

	This program is free software: you can redistribute it and/or modify it
	under the terms of the GNU Affero General Public License as published by
	the Free Software Foundation, either version 3 of the License, or (at your
	option) any later version.

	This program is distributed in the hope that it will be useful, but WITHOUT
	ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
	FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License
	for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program. If not, see <https://www.gnu.org/licenses/>.
*/

package store

import (
	"errors"
	"sync"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
	log "github.com/sirupsen/logrus"
)

// CachedSet remembers membership lookups of another Set for a while.
// Writes go through to the backing set first and then update the cache, so
// a lookup never returns a result older than the last write of this process.
// Cache fills and writes are serialized by mutex.
type CachedSet struct {
	Set
	cache *ttlcache.Cache
	mutex sync.Mutex
}

// NewCachedSet wraps backing with a membership cache whose entries expire after ttl
func NewCachedSet(backing Set, ttl time.Duration) *CachedSet {
	cache := ttlcache.NewCache()
	cache.SkipTTLExtensionOnHit(true)
	if err := cache.SetTTL(ttl); err != nil {
		log.Warnf("cache ttl %s: %s", ttl, err)
	}

	return &CachedSet{
		Set:   backing,
		cache: cache,
	}
}

// Contains answers from the cache when possible
func (s *CachedSet) Contains(member string) (bool, error) {
	if member == "" {
		return false, nil
	}

	if ok, found := s.cached(member); found {
		return ok, nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if ok, found := s.cached(member); found {
		return ok, nil
	}

	ok, err := s.Set.Contains(member)
	if err != nil {
		return false, err
	}

	s.remember(member, ok)
	return ok, nil
}

// Add inserts member into the backing set and caches it as present
func (s *CachedSet) Add(member string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.Set.Add(member); err != nil {
		s.forget(member)
		return err
	}

	s.remember(member, true)
	return nil
}

// Remove deletes member from the backing set and caches it as absent
func (s *CachedSet) Remove(member string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.Set.Remove(member); err != nil {
		s.forget(member)
		return err
	}

	s.remember(member, false)
	return nil
}

// Clear empties the backing set and the cache
func (s *CachedSet) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	err := s.Set.Clear()
	if perr := s.cache.Purge(); perr != nil {
		log.Debugf("membership cache purge: %s", perr)
	}
	return err
}

// Close stops the cache's expiry goroutine
func (s *CachedSet) Close() error {
	return s.cache.Close()
}

func (s *CachedSet) cached(member string) (ok, found bool) {
	v, err := s.cache.Get(member)
	if err != nil {
		if !errors.Is(err, ttlcache.ErrNotFound) {
			log.Debugf("membership cache: %s", err)
		}
		return false, false
	}
	return v.(bool), true
}

func (s *CachedSet) remember(member string, ok bool) {
	if member == "" {
		return
	}
	if err := s.cache.Set(member, ok); err != nil {
		log.Debugf("membership cache set %q: %s", member, err)
	}
}

func (s *CachedSet) forget(member string) {
	if err := s.cache.Remove(member); err != nil && !errors.Is(err, ttlcache.ErrNotFound) {
		log.Debugf("membership cache remove %q: %s", member, err)
	}
}
