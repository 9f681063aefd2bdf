package po_test

import (
	"testing"

	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
)

func TestPipelinePhaseTerminal(t *testing.T) {
	cases := []struct {
		phase po.PipelinePhase
		want  bool
	}{
		{po.PhaseReady, false},
		{po.PhaseParallelProcessing, false},
		{po.PhaseUploading, false},
		{po.PhaseIntegrating, false},
		{po.PhaseComplete, true},
		{po.PhaseError, true},
	}
	for _, tc := range cases {
		if got := tc.phase.Terminal(); got != tc.want {
			t.Fatalf("Terminal(%s) = %v, want %v", tc.phase, got, tc.want)
		}
	}
}
