package timeoff

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapDirectory maps employee -> supervisor; names are upper-cased ids.
type mapDirectory map[string]string

func (d mapDirectory) SupervisorOf(_ context.Context, id string) (*Approver, error) {
	if id == "broken" {
		return nil, errors.New("directory offline")
	}
	sup, ok := d[id]
	if !ok {
		return nil, nil
	}
	return &Approver{ID: sup, Name: "Name of " + sup}, nil
}

func ids(chain []Approver) []string {
	out := make([]string, len(chain))
	for i, a := range chain {
		out[i] = a.ID
	}
	return out
}

func TestSupervisorChain(t *testing.T) {
	dir := mapDirectory{
		"emp":  "lead",
		"lead": "mgr",
		"mgr":  "vp",
		"vp":   "ceo",
		"a":    "b",
		"b":    "a",
		"self": "self",
		"x":    "broken",
	}
	ctx := context.Background()

	tests := []struct {
		name     string
		from     string
		maxDepth int
		want     []string
	}{
		{"capped at depth", "emp", 3, []string{"lead", "mgr", "vp"}},
		{"deeper config", "emp", 5, []string{"lead", "mgr", "vp", "ceo"}},
		{"zero uses default", "emp", 0, []string{"lead", "mgr", "vp"}},
		{"top of hierarchy", "ceo", 3, []string{}},
		{"cycle stops", "a", 3, []string{"b"}},
		{"self-supervision ignored", "self", 3, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := SupervisorChain(ctx, dir, tt.from, tt.maxDepth)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(chain))
		})
	}
}

func TestSupervisorChain_DirectoryError(t *testing.T) {
	_, err := SupervisorChain(context.Background(), mapDirectory{"x": "broken"}, "x", 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve supervisor of broken")
}
