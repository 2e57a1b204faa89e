package server

import "tablekv/internal/catalog"

// session is the per-connection state a Handler carries: the current
// database and a cache of TableSource references, re-validated against
// the catalog on every lookup. It is single-owner and needs no lock.
type session struct {
	database string
	cache    map[string]*catalog.TableSource
}

func newSession() *session {
	return &session{cache: make(map[string]*catalog.TableSource)}
}

func (s *session) tableSource(cat *catalog.Catalog, name string) (*catalog.TableSource, error) {
	if ts, ok := s.cache[name]; ok && ts.Valid() {
		return ts, nil
	}
	ts, err := cat.Get(name)
	if err != nil {
		return nil, err
	}
	s.cache[name] = ts
	return ts, nil
}
