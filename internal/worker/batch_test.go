package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ppiankov/riskprobe/internal/model"
)

func mockAnalyze(shouldErr bool) AnalyzeFunc {
	return func(ctx context.Context, profile model.SubjectProfile) (*model.AnalysisResult, error) {
		time.Sleep(10 * time.Millisecond) // Simulate work
		if shouldErr {
			return nil, errors.New("analysis error")
		}
		return &model.AnalysisResult{
			Subject:    profile,
			FraudScore: 10,
			RiskLevel:  model.RiskLow,
		}, nil
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "profiles-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestBatchProcessor_ProcessProfiles(t *testing.T) {
	processor := NewBatchProcessor(mockAnalyze(false), 2)

	profiles := []model.SubjectProfile{
		{Name: "Alpha", Description: "a"},
		{Name: "Beta", Description: "b"},
		{Name: "Gamma", Description: "c"},
	}

	results := processor.ProcessProfiles(context.Background(), profiles)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Profile.Name, res.Error)
		}
		if res.Profile.Name != profiles[i].Name {
			t.Errorf("expected results in input order, got %s at %d", res.Profile.Name, i)
		}
		if res.Result == nil {
			t.Error("expected result for successful analysis")
		}
	}
}

func TestBatchProcessor_ProcessProfiles_Error(t *testing.T) {
	processor := NewBatchProcessor(mockAnalyze(true), 2)

	results := processor.ProcessProfiles(context.Background(), []model.SubjectProfile{{Name: "Alpha", Description: "a"}})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Result != nil {
		t.Error("expected nil result on error")
	}
}

func TestBatchProcessor_ProcessProfiles_Empty(t *testing.T) {
	processor := NewBatchProcessor(mockAnalyze(false), 2)

	results := processor.ProcessProfiles(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadProfilesFromFile_List(t *testing.T) {
	path := writeTemp(t, `
- name: Acme Ltd
  description: Registered payments company
  region: UK
- name: Acme Ltd
  description: duplicate
  region: uk
- name: ""
  description: nameless entries are skipped
- name: CoinMax
  description: Guaranteed returns on crypto
  industry: crypto
`)

	profiles, err := ReadProfilesFromFile(path)
	if err != nil {
		t.Fatalf("ReadProfilesFromFile failed: %v", err)
	}

	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].Region != "UK" {
		t.Errorf("expected first occurrence to win, got region %q", profiles[0].Region)
	}
	if profiles[1].Industry != "crypto" {
		t.Errorf("expected industry crypto, got %q", profiles[1].Industry)
	}
}

func TestReadProfilesFromFile_Wrapped(t *testing.T) {
	path := writeTemp(t, `
profiles:
  - name: Acme Ltd
    description: Registered payments company
`)

	profiles, err := ReadProfilesFromFile(path)
	if err != nil {
		t.Fatalf("ReadProfilesFromFile failed: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "Acme Ltd" {
		t.Errorf("unexpected profiles: %+v", profiles)
	}
}

func TestReadProfilesFromFile_NonExistent(t *testing.T) {
	_, err := ReadProfilesFromFile("non_existent_file.yaml")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestReadProfilesFromFile_Invalid(t *testing.T) {
	path := writeTemp(t, "name: [unterminated")

	_, err := ReadProfilesFromFile(path)
	if err == nil {
		t.Error("expected parse error, got nil")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTemp(t, "- name: A\n  description: a\n- name: B\n  description: b\n")

	processor := NewBatchProcessor(mockAnalyze(false), 2)

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(mockAnalyze(false), 2)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.yaml")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
