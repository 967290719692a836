package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/npdstracker/internal/logger"
)

type fakeSource struct {
	name  string
	lines []string
	err   error
	loads int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Load(context.Context) ([]string, error) {
	f.loads++
	return f.lines, f.err
}

type recordingReplayer struct{ lines []string }

func (r *recordingReplayer) Replay(_ context.Context, line string) {
	r.lines = append(r.lines, line)
}

func TestRestore(t *testing.T) {
	missing := fmt.Errorf("failed to read command log: %w", fs.ErrNotExist)
	broken := errors.New("connection refused")

	tests := []struct {
		name     string
		sources  []*fakeSource
		want     []string
		wantErr  error
		wantLoad []int
	}{
		{
			name: "first source wins",
			sources: []*fakeSource{
				{name: "cmdlog", lines: []string{"REGUP a.example.org A", "REGUP b.example.org:8080 B"}},
				{name: "redis", lines: []string{"REGUP c.example.org C"}},
			},
			want:     []string{"REGUP a.example.org A", "REGUP b.example.org:8080 B"},
			wantLoad: []int{1, 0},
		},
		{
			name: "falls back when the file is missing",
			sources: []*fakeSource{
				{name: "cmdlog", err: missing},
				{name: "redis", lines: []string{"REGUP c.example.org C"}},
			},
			want:     []string{"REGUP c.example.org C"},
			wantLoad: []int{1, 1},
		},
		{
			name: "empty file is a valid log",
			sources: []*fakeSource{
				{name: "cmdlog"},
				{name: "redis", lines: []string{"REGUP c.example.org C"}},
			},
			wantLoad: []int{1, 0},
		},
		{
			name: "nothing stored",
			sources: []*fakeSource{
				{name: "cmdlog", err: missing},
				{name: "redis", err: missing},
			},
			wantLoad: []int{1, 1},
		},
		{
			name: "failing source reported",
			sources: []*fakeSource{
				{name: "cmdlog", err: missing},
				{name: "redis", err: broken},
			},
			wantErr:  broken,
			wantLoad: []int{1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &recordingReplayer{}
			srcs := make([]LineSource, len(tt.sources))
			for i, s := range tt.sources {
				srcs[i] = s
			}

			n, err := NewRestorer(rep, logger.Nop(), srcs...).Restore(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, len(tt.want), n)
			assert.Equal(t, tt.want, rep.lines)
			for i, s := range tt.sources {
				assert.Equal(t, tt.wantLoad[i], s.loads, s.name)
			}
		})
	}
}
