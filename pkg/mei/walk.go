package mei

// Measures returns the measures of the document in order.
func (d *Document) Measures() []*Measure {
	if d == nil || d.Score == nil || d.Score.Section == nil {
		return nil
	}
	var out []*Measure
	for _, c := range d.Score.Section.Children {
		if m, ok := c.(*Measure); ok {
			out = append(out, m)
		}
	}
	return out
}

// WalkEvents calls fn for every layer child of every measure, chord members
// included, in document order. The chord itself is visited before its notes.
func (d *Document) WalkEvents(fn func(m *Measure, staff *Staff, layer *Layer, ev LayerChild)) {
	for _, m := range d.Measures() {
		for _, st := range m.Staves {
			for _, l := range st.Layers {
				for _, ev := range l.Children {
					fn(m, st, l, ev)
					if ch, ok := ev.(*Chord); ok {
						for _, n := range ch.Notes {
							fn(m, st, l, n)
						}
					}
				}
			}
		}
	}
}

// Controls returns every control event in document order.
func (d *Document) Controls() []ControlEvent {
	var out []ControlEvent
	for _, m := range d.Measures() {
		out = append(out, m.Controls...)
	}
	return out
}

// IDs collects the xml:id of every element that can be referenced:
// measures, layer events, chord members and control events.
func (d *Document) IDs() []string {
	var ids []string
	add := func(id string) {
		if id != "" {
			ids = append(ids, id)
		}
	}
	for _, m := range d.Measures() {
		add(m.ID)
	}
	d.WalkEvents(func(_ *Measure, _ *Staff, _ *Layer, ev LayerChild) {
		add(ev.ElementID())
		if n, ok := ev.(*Note); ok {
			for _, c := range n.Children {
				switch c := c.(type) {
				case *Accid:
					add(c.ID)
				case *Verse:
					add(c.ID)
				}
			}
		}
	})
	for _, c := range d.Controls() {
		add(c.ElementID())
	}
	return ids
}

// EventIndex maps xml:id to layer event for every event in the tree.
func (d *Document) EventIndex() map[string]LayerChild {
	idx := make(map[string]LayerChild)
	d.WalkEvents(func(_ *Measure, _ *Staff, _ *Layer, ev LayerChild) {
		if id := ev.ElementID(); id != "" {
			idx[id] = ev
		}
	})
	return idx
}
