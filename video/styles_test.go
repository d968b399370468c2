package video

import "testing"

func TestLookupStyleAliases(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"style1", "style1"},
		{"create-video-style1", "style1"},
		{"create-video-vid-1", "vid-1"},
		{"vid-1.5", "vid-1.5"},
	}

	for _, tt := range tests {
		spec, ok := LookupStyle(tt.name)
		if !ok {
			t.Errorf("LookupStyle(%q) not found", tt.name)
			continue
		}
		if spec.Name != tt.want {
			t.Errorf("LookupStyle(%q).Name = %q, want %q", tt.name, spec.Name, tt.want)
		}
	}
}

func TestLookupStyleUnknown(t *testing.T) {
	if _, ok := LookupStyle("style99"); ok {
		t.Error("unknown style should not resolve")
	}
}

func TestStyleTable(t *testing.T) {
	if len(StyleNames()) != 9 {
		t.Errorf("expected 9 styles, got %v", StyleNames())
	}

	for _, name := range StyleNames() {
		spec, ok := LookupStyle(name)
		if !ok {
			t.Errorf("style %q not resolvable by its own name", name)
			continue
		}
		if spec.MultiClip && spec.Media != "" {
			t.Errorf("style %q is both multi-clip and single-media", name)
		}
		if !spec.MultiClip && spec.Media == "" {
			t.Errorf("style %q declares no media kind", name)
		}
	}
}

func TestVideoStylesNeverFade(t *testing.T) {
	for _, name := range []string{"vid-1", "vid-1.2", "vid-1.3", "vid-1.4", "vid-1.5"} {
		spec, _ := LookupStyle(name)
		if spec.Fade {
			t.Errorf("style %q must not fade", name)
		}
	}
}
