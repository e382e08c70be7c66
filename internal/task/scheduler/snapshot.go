package scheduler

import "sort"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defs := make([]*scheduleDef, len(s.defs))
	copy(defs, s.defs)
	loc := s.loc
	s.mu.Unlock()

	items := make([]ScheduleInfo, 0, len(defs))
	for _, d := range defs {
		d.mu.Lock()
		items = append(items, ScheduleInfo{
			Name:      d.name,
			Kind:      d.entry.Kind,
			Directive: d.entry.String(),
			Command:   d.entry.Command,
			Next:      d.next,
			Prev:      d.prev,
			Fires:     d.fires,
		})
		d.mu.Unlock()
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	return Snapshot{Timezone: loc.String(), Schedules: items}
}
