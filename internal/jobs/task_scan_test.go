package jobs

import (
	"testing"

	"github.com/imHansiy/mediadex/internal/models"
	"github.com/imHansiy/mediadex/internal/scanner"
)

func TestStagePercent(t *testing.T) {
	tests := []struct {
		stage string
		done  int
		total int
		want  int
	}{
		{"walk", 0, 4, 0},
		{"walk", 2, 4, 10},
		{"walk", 4, 4, 20},
		{"enrich", 0, 10, 20},
		{"enrich", 5, 10, 57},
		{"enrich", 10, 10, 95},
		{"merge", 3, 3, 100},
		{"walk", 0, 0, 0},
		{"merge", 0, 0, 95},
	}
	for _, tt := range tests {
		got := stagePercent(tt.stage, tt.done, tt.total)
		if got != tt.want {
			t.Errorf("stagePercent(%q, %d, %d) = %d, want %d", tt.stage, tt.done, tt.total, got, tt.want)
		}
	}
}

func TestApplyResult(t *testing.T) {
	run := &models.ScanRun{}
	applyResult(run, nil)
	if run.DirsVisited != 0 || run.Verdicts != nil {
		t.Fatalf("nil result should leave the run untouched: %+v", run)
	}

	result := &scanner.Result{
		Analyses: []*models.TreeAnalysis{
			{Root: "/media/a", Verdict: models.VerdictMoviesOnly, Candidates: []models.Candidate{{}, {}}},
			{Root: "/media/b", Verdict: models.VerdictTVOnly, Candidates: []models.Candidate{{}}},
		},
		DirsVisited:  5,
		MoviesTotal:  2,
		TVTotal:      1,
		Placeholders: 1,
	}
	applyResult(run, result)

	if run.CandidatesFound != 3 {
		t.Errorf("CandidatesFound = %d, want 3", run.CandidatesFound)
	}
	if run.DirsVisited != 5 || run.MoviesTotal != 2 || run.TVTotal != 1 || run.Placeholders != 1 {
		t.Errorf("counters not copied: %+v", run)
	}
	if run.Verdicts["/media/a"] != models.VerdictMoviesOnly {
		t.Errorf("verdict for /media/a = %q, want %q", run.Verdicts["/media/a"], models.VerdictMoviesOnly)
	}
	if run.Verdicts["/media/b"] != models.VerdictTVOnly {
		t.Errorf("verdict for /media/b = %q, want %q", run.Verdicts["/media/b"], models.VerdictTVOnly)
	}
}
