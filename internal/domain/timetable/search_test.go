package timetable

import "testing"

func TestMatchGroups(t *testing.T) {
	groups := []*Group{
		{ID: 1, Name: "БОЗИоз23", ExternalID: 101},
		{ID: 2, Name: "ИТпб21", ExternalID: 102},
		{ID: 3, Name: "ИТпб22", ExternalID: 103},
		{ID: 4, Name: "ФИЗ-1", ExternalID: 104},
	}

	t.Run("exact match first", func(t *testing.T) {
		got := MatchGroups(groups, "ИТпб21")
		if len(got) == 0 || got[0].ExternalID != 102 {
			t.Fatalf("expected exact match ИТпб21 first, got %v", got)
		}
	})

	t.Run("substring match", func(t *testing.T) {
		got := MatchGroups(groups, "итпб")
		if len(got) != 2 {
			t.Fatalf("expected 2 substring matches, got %d", len(got))
		}
	})

	t.Run("abbreviation match", func(t *testing.T) {
		got := MatchGroups(groups, "БОЗ")
		if len(got) != 1 || got[0].ExternalID != 101 {
			t.Fatalf("expected БОЗ to find БОЗИоз23, got %v", got)
		}
	})

	t.Run("no match", func(t *testing.T) {
		if got := MatchGroups(groups, "ЭКОН"); len(got) != 0 {
			t.Fatalf("expected no matches, got %v", got)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if got := MatchGroups(groups, "   "); got != nil {
			t.Fatalf("expected nil for blank query, got %v", got)
		}
	})
}
