package worker

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/riskprobe/internal/model"
	"gopkg.in/yaml.v3"
)

// AnalyzeFunc runs one subject through the analysis pipeline
type AnalyzeFunc func(ctx context.Context, profile model.SubjectProfile) (*model.AnalysisResult, error)

// AnalyzeResult represents the outcome of one analysis job
type AnalyzeResult struct {
	Index   int
	Profile model.SubjectProfile
	Result  *model.AnalysisResult
	Error   error
}

// BatchProcessor analyzes multiple profiles concurrently
type BatchProcessor struct {
	analyze     AnalyzeFunc
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyze AnalyzeFunc, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyze:     analyze,
		concurrency: concurrency,
	}
}

// ProcessProfiles analyzes profiles concurrently and returns results in input order
func (b *BatchProcessor) ProcessProfiles(ctx context.Context, profiles []model.SubjectProfile) []*AnalyzeResult {
	tasks := make([]Task[*model.AnalysisResult], len(profiles))
	for i, profile := range profiles {
		profile := profile
		tasks[i] = func(ctx context.Context) (*model.AnalysisResult, error) {
			return b.analyze(ctx, profile)
		}
	}

	outcomes := NewPool[*model.AnalysisResult](b.concurrency).Run(ctx, tasks)

	results := make([]*AnalyzeResult, len(outcomes))
	for i, o := range outcomes {
		results[i] = &AnalyzeResult{
			Index:   i,
			Profile: profiles[i],
			Result:  o.Value,
			Error:   o.Err,
		}
	}
	return results
}

// ProcessFile reads profiles from a YAML file and analyzes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AnalyzeResult, error) {
	profiles, err := ReadProfilesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	return b.ProcessProfiles(ctx, profiles), nil
}

// profileFile is the on-disk batch format
type profileFile struct {
	Profiles []model.SubjectProfile `yaml:"profiles"`
}

// ReadProfilesFromFile reads subject profiles from a YAML file.
// The file is either a list of profiles or a mapping with a "profiles" key.
func ReadProfilesFromFile(filePath string) ([]model.SubjectProfile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var profiles []model.SubjectProfile
	var wrapped profileFile
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Profiles) > 0 {
		profiles = wrapped.Profiles
	} else if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	var unique []model.SubjectProfile
	seen := make(map[string]bool)

	for _, p := range profiles {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}

		// Deduplicate by name and region
		key := strings.ToLower(strings.TrimSpace(p.Name)) + "|" + strings.ToLower(strings.TrimSpace(p.Region))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, p)
		}
	}

	return unique, nil
}
