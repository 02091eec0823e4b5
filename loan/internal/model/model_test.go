package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maramotto/librored/loan/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func TestInterval_Overlaps(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name string
		a, b model.Interval
		want bool
	}{
		{
			name: "disjoint",
			a:    model.NewInterval(date("2025-01-01"), datePtr("2025-01-14")),
			b:    model.NewInterval(date("2025-01-15"), datePtr("2025-01-30")),
			want: false,
		},
		{
			name: "touching boundary conflicts",
			a:    model.NewInterval(date("2025-01-01"), datePtr("2025-01-15")),
			b:    model.NewInterval(date("2025-01-15"), datePtr("2025-01-30")),
			want: true,
		},
		{
			name: "contained",
			a:    model.NewInterval(date("2025-01-01"), datePtr("2025-01-31")),
			b:    model.NewInterval(date("2025-01-10"), datePtr("2025-01-20")),
			want: true,
		},
		{
			name: "open-ended blocks any start on or after its own",
			a:    model.NewInterval(date("2025-02-10"), nil),
			b:    model.NewInterval(date("2027-06-01"), datePtr("2027-06-15")),
			want: true,
		},
		{
			name: "open-ended blocks candidate ending inside it",
			a:    model.NewInterval(date("2025-02-10"), nil),
			b:    model.NewInterval(date("2025-02-01"), datePtr("2025-02-15")),
			want: true,
		},
		{
			name: "open-ended does not block candidate ending strictly before",
			a:    model.NewInterval(date("2025-02-10"), nil),
			b:    model.NewInterval(date("2025-02-01"), datePtr("2025-02-09")),
			want: false,
		},
		{
			name: "two open-ended intervals always conflict",
			a:    model.NewInterval(date("2025-02-10"), nil),
			b:    model.NewInterval(date("2030-01-01"), nil),
			want: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			// symmetry
			require.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestInterval_OverlapsSelf(t *testing.T) {
	t.Parallel()
	bounded := model.NewInterval(date("2025-03-01"), datePtr("2025-03-15"))
	open := model.NewInterval(date("2025-03-01"), nil)
	require.True(t, bounded.Overlaps(bounded))
	require.True(t, open.Overlaps(open))
}

func TestStatus_CanTransition(t *testing.T) {
	t.Parallel()
	require.True(t, model.StatusActive.CanTransition(model.StatusCompleted))
	require.True(t, model.StatusActive.CanTransition(model.StatusActive))
	require.True(t, model.StatusCompleted.CanTransition(model.StatusCompleted))
	require.False(t, model.StatusCompleted.CanTransition(model.StatusActive))
}

func TestDate_JSON(t *testing.T) {
	t.Parallel()
	var d model.Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-01"`), &d))
	require.Equal(t, date("2025-03-01"), d.Time)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"2025-03-01"`, string(b))

	require.Error(t, json.Unmarshal([]byte(`"01/03/2025"`), &d))
}
