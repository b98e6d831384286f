package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

// LabelledSample is a recording of a known speaker. Username may name
// someone who is not enrolled, which makes the sample an impostor attempt.
type LabelledSample struct {
	Username string `json:"username"`
	Path     string `json:"path"`
}

// SampleOutcome is the identification of one benchmark sample.
type SampleOutcome struct {
	LabelledSample
	Genuine    bool             `json:"genuine"`
	Identified string           `json:"identified,omitempty"`
	Confidence azure.Confidence `json:"confidence,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// LevelReport counts errors when accepting identifications of at least
// Confidence.
type LevelReport struct {
	Confidence azure.Confidence `json:"confidence"`
	// FalseAccepts counts impostors accepted as any user.
	FalseAccepts int `json:"false_accepts"`
	// Misidentified counts genuine samples accepted as another user. They
	// are false rejects too.
	Misidentified int `json:"misidentified"`
	FalseRejects  int `json:"false_rejects"`
	// FAR is FalseAccepts over the scored impostor samples, FRR is
	// FalseRejects over the scored genuine samples.
	FAR float64 `json:"far"`
	FRR float64 `json:"frr"`
}

// BenchmarkReport summarizes a benchmark run.
type BenchmarkReport struct {
	Samples  int             `json:"samples"`
	Genuine  int             `json:"genuine"`
	Impostor int             `json:"impostor"`
	Failed   int             `json:"failed"`
	Levels   []LevelReport   `json:"levels"`
	Outcomes []SampleOutcome `json:"outcomes"`
}

var benchmarkLevels = []azure.Confidence{azure.ConfidenceLow, azure.ConfidenceNormal, azure.ConfidenceHigh}

// Benchmark identifies every sample against all enrolled users and reports,
// for each confidence threshold, how many impostors would have been let in
// and how many genuine users turned away. Samples that cannot be processed
// are reported and left out of the rates.
func (s *Service) Benchmark(ctx context.Context, samples []LabelledSample) (*BenchmarkReport, error) {
	users, err := s.enrolledUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("benchmark: %s", ReasonNoCandidates)
	}
	enrolled := make(map[string]bool, len(users))
	for _, u := range users {
		enrolled[u.Username] = true
	}

	report := &BenchmarkReport{Samples: len(samples)}
	for _, smp := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out := SampleOutcome{LabelledSample: smp, Genuine: enrolled[smp.Username]}
		ident, err := s.identifySampleAgainst(ctx, smp.Path, users)
		switch {
		case err != nil:
			out.Error = err.Error()
			report.Failed++
			s.log.WithError(err).Warnf("Benchmark sample %s failed", smp.Path)
		case ident != nil:
			out.Confidence = ident.Confidence
			if ident.User != nil {
				out.Identified = ident.User.Username
			}
		}
		if err == nil {
			if out.Genuine {
				report.Genuine++
			} else {
				report.Impostor++
			}
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	for _, level := range benchmarkLevels {
		lr := LevelReport{Confidence: level}
		for _, out := range report.Outcomes {
			if out.Error != "" {
				continue
			}
			accepted := out.Identified != "" && out.Confidence.AtLeast(level)
			switch {
			case !out.Genuine:
				if accepted {
					lr.FalseAccepts++
				}
			case accepted && out.Identified != out.Username:
				lr.Misidentified++
				lr.FalseRejects++
			case !accepted:
				lr.FalseRejects++
			}
		}
		if report.Impostor > 0 {
			lr.FAR = float64(lr.FalseAccepts) / float64(report.Impostor)
		}
		if report.Genuine > 0 {
			lr.FRR = float64(lr.FalseRejects) / float64(report.Genuine)
		}
		report.Levels = append(report.Levels, lr)
	}
	return report, nil
}

func (s *Service) identifySampleAgainst(ctx context.Context, path string, users []*types.User) (*Identification, error) {
	wav, format, err := s.readWAV(path)
	if err != nil {
		return nil, err
	}
	return s.identify(ctx, wav, format, users)
}

// SamplesFromDir lists the WAV files of dir named <username>_<anything>.wav.
func SamplesFromDir(dir string) ([]LabelledSample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var samples []LabelledSample
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".wav") {
			continue
		}
		username, _, ok := strings.Cut(strings.TrimSuffix(name, filepath.Ext(name)), "_")
		if !ok || username == "" {
			continue
		}
		samples = append(samples, LabelledSample{Username: username, Path: filepath.Join(dir, name)})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Path < samples[j].Path })
	return samples, nil
}
