package company

import "fmt"

// ID identifies a company. Neutral owns public assets (towns, industries) and
// never triggers ownership conflicts; Null marks "no company".
type ID uint8

const (
	Neutral ID = 0x0F
	Null    ID = 0xFF

	MaxCompanies = 15
)

func (id ID) IsNeutral() bool { return id == Neutral }
func (id ID) IsNull() bool    { return id == Null }

func (id ID) String() string {
	switch id {
	case Neutral:
		return "neutral"
	case Null:
		return "null"
	default:
		return fmt.Sprintf("company#%d", uint8(id))
	}
}

// Company is the minimal per-company data the core needs for messages.
type Company struct {
	ID    ID
	Name  string
	Owner string // manager name shown in dialogs
}

// Registry holds the active companies indexed by id.
// Accessed only from the game loop goroutine; no locks.
type Registry struct {
	companies [MaxCompanies]*Company
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a company, replacing any previous company in the same slot.
func (r *Registry) Add(c Company) error {
	if int(c.ID) >= MaxCompanies {
		return fmt.Errorf("company id %d out of range", c.ID)
	}
	cp := c
	r.companies[c.ID] = &cp
	return nil
}

// Get returns the company or nil when the slot is empty.
func (r *Registry) Get(id ID) *Company {
	if int(id) >= MaxCompanies {
		return nil
	}
	return r.companies[id]
}

// Name returns the company name, or a fallback for neutral/unknown ids.
func (r *Registry) Name(id ID) string {
	if c := r.Get(id); c != nil {
		return c.Name
	}
	if id == Neutral {
		return "Town"
	}
	return id.String()
}

// Rename changes the stored company name.
func (r *Registry) Rename(id ID, name string) error {
	c := r.Get(id)
	if c == nil {
		return fmt.Errorf("company %s not found", id)
	}
	c.Name = name
	return nil
}

// FindByName returns the company using name, if any.
func (r *Registry) FindByName(name string) (ID, bool) {
	for _, c := range r.companies {
		if c != nil && c.Name == name {
			return c.ID, true
		}
	}
	return Null, false
}

// Count returns the number of registered companies.
func (r *Registry) Count() int {
	n := 0
	for _, c := range r.companies {
		if c != nil {
			n++
		}
	}
	return n
}
