package layout

import "fmt"

// Grid is the size of the home screen in cells.
type Grid struct {
	Rows    int
	Columns int
}

// Fits checks that p is a valid placement entirely inside g.
func (g Grid) Fits(p Placement) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Row+p.RowSpan > g.Rows || p.Column+p.ColumnSpan > g.Columns {
		return fmt.Errorf("%w: (%d,%d) span %dx%d on a %dx%d grid",
			ErrOutOfBounds, p.Row, p.Column, p.RowSpan, p.ColumnSpan, g.Rows, g.Columns)
	}
	return nil
}

// Clamp returns the placement nearest to p that fits g: the position is
// pulled inside the grid first, then the spans are shrunk to the remaining
// cells. A grid with no cells returns p unchanged.
func (g Grid) Clamp(p Placement) Placement {
	if g.Rows < 1 || g.Columns < 1 {
		return p
	}
	p.Row = clamp(p.Row, 0, g.Rows-1)
	p.Column = clamp(p.Column, 0, g.Columns-1)
	p.RowSpan = clamp(p.RowSpan, 1, g.Rows-p.Row)
	p.ColumnSpan = clamp(p.ColumnSpan, 1, g.Columns-p.Column)
	return p
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Place checks that it can join items: it must fit g, must not share an id
// with another item and must not overlap one. Items with the same id as
// skipID are ignored, so an item can be checked against its own old
// position.
func (g Grid) Place(items []Item, it Item, skipID string) error {
	if err := validateItem(it); err != nil {
		return err
	}
	p := it.Place()
	if err := g.Fits(p); err != nil {
		return err
	}
	for _, other := range items {
		if other.ID() == skipID {
			continue
		}
		if other.ID() == it.ID() {
			return fmt.Errorf("%w: %s", ErrDuplicate, it.ID())
		}
		if p.Overlaps(other.Place()) {
			return fmt.Errorf("%w: %s and %s", ErrOverlap, it.ID(), other.ID())
		}
	}
	return nil
}

// Validate checks a whole layout against g.
func (g Grid) Validate(items []Item) error {
	for i, it := range items {
		if err := g.Place(items[:i], it, ""); err != nil {
			return err
		}
	}
	return nil
}

// FreeCell returns the first free rectangle of the given span, scanning
// rows top to bottom.
func (g Grid) FreeCell(items []Item, rowSpan, columnSpan int) (Placement, bool) {
	if rowSpan < 1 || columnSpan < 1 {
		return Placement{}, false
	}
	for r := 0; r+rowSpan <= g.Rows; r++ {
		for c := 0; c+columnSpan <= g.Columns; c++ {
			p := Placement{Row: r, Column: c, RowSpan: rowSpan, ColumnSpan: columnSpan}
			free := true
			for _, it := range items {
				if p.Overlaps(it.Place()) {
					free = false
					break
				}
			}
			if free {
				return p, true
			}
		}
	}
	return Placement{}, false
}
