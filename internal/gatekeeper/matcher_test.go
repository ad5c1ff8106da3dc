package gatekeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"atomgate/internal/atom"
)

func TestBlocked(t *testing.T) {
	tests := []struct {
		name    string
		tags    map[string][]string
		context map[string]string
		want    bool
	}{
		{
			name:    "no tags never blocked",
			tags:    nil,
			context: map[string]string{"mode": "active"},
			want:    false,
		},
		{
			name:    "unassigned dimension never blocks",
			tags:    map[string][]string{"language": {"go"}},
			context: map[string]string{},
			want:    false,
		},
		{
			name:    "matching value passes",
			tags:    map[string][]string{"language": {"go"}},
			context: map[string]string{"language": "go"},
			want:    false,
		},
		{
			name:    "conflicting value blocks",
			tags:    map[string][]string{"language": {"go"}},
			context: map[string]string{"language": "rust"},
			want:    true,
		},
		{
			name:    "any value in OR-set suffices",
			tags:    map[string][]string{"language": {"go", "rust"}},
			context: map[string]string{"language": "rust"},
			want:    false,
		},
		{
			name:    "one mismatched dimension blocks despite another matching",
			tags:    map[string][]string{"language": {"go"}, "mode": {"active"}},
			context: map[string]string{"language": "go", "mode": "dream"},
			want:    true,
		},
		{
			name:    "undeclared context dimensions are ignored",
			tags:    map[string][]string{"language": {"go"}},
			context: map[string]string{"mode": "active"},
			want:    false,
		},
		{
			name:    "slash prefix and case are normalized",
			tags:    map[string][]string{"mode": {"/Active"}},
			context: map[string]string{"mode": "active"},
			want:    false,
		},
		{
			name:    "empty OR-set is ignored",
			tags:    map[string][]string{"language": {}},
			context: map[string]string{"language": "rust"},
			want:    false,
		},
		{
			name:    "dimension key casing is normalized on both sides",
			tags:    map[string][]string{"Mode": {"active"}},
			context: map[string]string{"MODE": "active"},
			want:    false,
		},
		{
			name:    "mixed-case dimension still blocks on value conflict",
			tags:    map[string][]string{"Mode": {"active"}},
			context: map[string]string{"mode": "dream"},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := atom.New("subject", "content")
			a.Tags = tt.tags
			got := Blocked(a, SnapshotFrom(tt.context))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBlocked_NilArguments(t *testing.T) {
	assert.False(t, Blocked(nil, NewSnapshot()))

	a := atom.New("subject", "content")
	a.Tags = map[string][]string{"mode": {"active"}}
	assert.False(t, Blocked(a, nil))
}

func TestSnapshot(t *testing.T) {
	snap := NewSnapshot().Set("mode", "active").Set("language", "go")

	v, ok := snap.Value("mode")
	assert.True(t, ok)
	assert.Equal(t, "active", v)

	_, ok = snap.Value("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"language", "mode"}, snap.Dimensions())

	clone := snap.Clone()
	clone.Set("mode", "dream")
	v, _ = snap.Value("mode")
	assert.Equal(t, "active", v, "clone must not alias the original")

	snap.Set("language", "")
	_, ok = snap.Value("language")
	assert.False(t, ok, "empty value clears the dimension")

	snap.Set("Target-OS", "linux")
	v, ok = snap.Value("target-os")
	assert.True(t, ok, "dimension keys are normalized")
	assert.Equal(t, "linux", v)
	snap.Set("target-os", "")

	assert.Equal(t, "Snapshot{mode=active}", snap.String())
}
