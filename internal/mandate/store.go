package mandate

// Matcher decides whether a mandate belongs in a filtered listing.
type Matcher interface {
	Match(m *Mandate) (bool, error)
}

// Filter narrows a listing. Empty sets match everything.
type Filter struct {
	Statuses []Status
	Types    []Type
	Where    Matcher
}

func (f Filter) match(m *Mandate) (bool, error) {
	if len(f.Statuses) > 0 && !contains(f.Statuses, m.Status) {
		return false, nil
	}
	if len(f.Types) > 0 && !contains(f.Types, m.MandateType) {
		return false, nil
	}
	if f.Where != nil {
		return f.Where.Match(m)
	}
	return true, nil
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Store is the ordered collection of one session's mandates, newest first.
// It is not safe for concurrent use; a session owns exactly one Store.
type Store struct {
	order []string // newest first
	byID  map[string]*Mandate
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*Mandate)}
}

// Len returns the number of mandates held.
func (s *Store) Len() int { return len(s.order) }

// Has reports whether id is in the store.
func (s *Store) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Insert places m at the head of the store. Ids are never reused.
func (s *Store) Insert(m *Mandate) error {
	if _, ok := s.byID[m.MandateID]; ok {
		return &DuplicateIDError{MandateID: m.MandateID}
	}
	s.byID[m.MandateID] = m.Clone()
	s.order = append([]string{m.MandateID}, s.order...)
	return nil
}

// Get returns a copy of the mandate with the given id.
func (s *Store) Get(id string) (*Mandate, error) {
	m, ok := s.byID[id]
	if !ok {
		return nil, &NotFoundError{MandateID: id}
	}
	return m.Clone(), nil
}

// Update runs fn against a working copy of the mandate and stores the copy
// only if fn succeeds, so a failed transition leaves the record untouched.
// It returns a copy of the committed record.
func (s *Store) Update(id string, fn func(m *Mandate) error) (*Mandate, error) {
	current, ok := s.byID[id]
	if !ok {
		return nil, &NotFoundError{MandateID: id}
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	// Identity fields are fixed at creation.
	working.MandateID = current.MandateID
	working.Amount = current.Amount
	working.Currency = current.Currency
	working.CreatedAt = current.CreatedAt
	working.IssuedBy = current.IssuedBy
	s.byID[id] = working
	return working.Clone(), nil
}

// List returns copies of the mandates matching f, newest first.
func (s *Store) List(f Filter) ([]*Mandate, error) {
	out := make([]*Mandate, 0, len(s.order))
	for _, id := range s.order {
		m := s.byID[id]
		ok, err := f.match(m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}
