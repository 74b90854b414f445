package category

import (
	"eventcal/internal/model"
)

// Chip is one clickable tag in the picker.
type Chip struct {
	Name     string
	Color    string
	Selected bool
}

// Chips is the tag picker state: one chip per category followed by the
// trailing "add" control, plus the current selection.
type Chips struct {
	multi bool
	chips []Chip
}

func NewChips(cats []model.Category, multi bool) *Chips {
	c := &Chips{multi: multi}
	for _, cat := range cats {
		c.upsert(cat)
	}
	return c
}

// Items returns the chips in display order. The add control always renders
// after the last item.
func (c *Chips) Items() []Chip {
	out := make([]Chip, len(c.chips))
	copy(out, c.chips)
	return out
}

func (c *Chips) Multi() bool { return c.multi }

// Toggle flips the chip named name. In single mode every other chip is
// cleared first, so at most one is selected and re-clicking the selected
// chip leaves none. In multi mode chips toggle independently.
func (c *Chips) Toggle(name string) {
	i := c.index(name)
	if i < 0 {
		return
	}
	wasSelected := c.chips[i].Selected
	if !c.multi {
		for j := range c.chips {
			c.chips[j].Selected = false
		}
	}
	c.chips[i].Selected = !wasSelected
}

// Select marks name selected (keeping single-mode exclusivity).
func (c *Chips) Select(name string) {
	i := c.index(name)
	if i < 0 || c.chips[i].Selected {
		return
	}
	c.Toggle(name)
}

// Apply reflects a successful upsert: a new name is appended before the add
// control, an existing one has its color updated in place. The chip is then
// selected.
func (c *Chips) Apply(cat model.Category) {
	c.upsert(cat)
	c.Select(cat.Name)
}

// Selected returns the selected names in chip order, without duplicates.
func (c *Chips) Selected() []string {
	var out []string
	for _, ch := range c.chips {
		if ch.Selected {
			out = append(out, ch.Name)
		}
	}
	return out
}

// Restore re-applies a previous selection, e.g. after a failed submit.
func (c *Chips) Restore(names []string) {
	for _, n := range names {
		c.Select(n)
		if !c.multi {
			return
		}
	}
}

func (c *Chips) upsert(cat model.Category) {
	if i := c.index(cat.Name); i >= 0 {
		c.chips[i].Color = cat.Color
		return
	}
	c.chips = append(c.chips, Chip{Name: cat.Name, Color: cat.Color})
}

func (c *Chips) index(name string) int {
	for i, ch := range c.chips {
		if ch.Name == name {
			return i
		}
	}
	return -1
}
