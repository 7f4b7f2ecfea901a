package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ppiankov/riskprobe/internal/connector"
	"github.com/ppiankov/riskprobe/internal/connector/mocks"
	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/ppiankov/riskprobe/internal/runctx"
)

var (
	subjectA = model.SubjectProfile{Name: "Subject A", Description: "registered with regulator, ISO certified"}
	subjectB = model.SubjectProfile{Name: "Subject B", Description: "Ponzi structure offering guaranteed returns"}
)

func testConfig() model.Config {
	cfg := model.DefaultConfig()
	cfg.Collection.InterQueryDelay = 0
	return cfg
}

func newPrimary(t *testing.T) *mocks.MockConnector {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockConnector(ctrl)
	m.EXPECT().ID().Return("searchapi").AnyTimes()
	return m
}

func newPipeline(t *testing.T, cfg model.Config, primary connector.Connector) *Pipeline {
	p, err := New(cfg, Components{Primary: primary})
	require.NoError(t, err)
	return p
}

// legitimacyResponder answers the first query with two authoritative legitimacy hits and the rest with nothing
func legitimacyResponder() func(context.Context, string, connector.SearchOptions) (*connector.SearchResponse, error) {
	var calls atomic.Int32
	return func(_ context.Context, q string, _ connector.SearchOptions) (*connector.SearchResponse, error) {
		resp := &connector.SearchResponse{Source: "searchapi", Query: q}
		if calls.Add(1) == 1 {
			resp.Results = []connector.SearchResult{
				{
					Title:   "Subject A",
					Snippet: "Subject A is registered with Companies House",
					URL:     "https://opencorporates.com/companies/gb/123",
				},
				{
					Title:   "Subject A authorisation",
					Snippet: "Subject A licensed by the FCA",
					URL:     "https://register.fca.org.uk/s/firm?id=1",
				},
			}
		}
		return resp, nil
	}
}

func TestAnalyze_LegitimateSubject(t *testing.T) {
	primary := newPrimary(t)
	primary.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(legitimacyResponder()).AnyTimes()

	p := newPipeline(t, testConfig(), primary)
	result, err := p.Analyze(context.Background(), subjectA, Options{})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Degraded)
	assert.Greater(t, result.CategoryScores.LegitimacyEvidence, 70)
	assert.Less(t, result.FraudScore, 30)
	assert.Equal(t, model.RiskLow, result.RiskLevel)
	assert.Equal(t, model.ActionApprove, result.RecommendedAction)

	require.NotNil(t, result.Triage)
	assert.Equal(t, model.StrategyLight, result.Triage.Strategy.Name)
	require.NotNil(t, result.Collection)
	assert.Equal(t, 3, result.Collection.QueriesIssued)

	require.NotNil(t, result.Narrative)
	assert.Equal(t, model.NarrativeTemplate, result.Narrative.Source)
	assert.Empty(t, result.Evidence, "evidence atoms are only returned for enhanced requests")
	require.Positive(t, result.Collection.SourcesUsed)
	findings := result.EvidenceBreakdown.Findings
	assert.GreaterOrEqual(t, findings.Count(), result.EvidenceBreakdown.Total)
	require.Len(t, findings.Legitimacy, 2)
	assert.Equal(t, "https://opencorporates.com/companies/gb/123", findings.Legitimacy[0].URL)
	assert.NotEmpty(t, result.RequestID)
}

func TestAnalyze_FraudulentSubject(t *testing.T) {
	primary := newPrimary(t)
	var n atomic.Int32
	primary.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, q string, _ connector.SearchOptions) (*connector.SearchResponse, error) {
			i := n.Add(1)
			return &connector.SearchResponse{Source: "searchapi", Query: q, Results: []connector.SearchResult{{
				Title:   "Subject B scam",
				Snippet: "victims report stolen funds",
				URL:     fmt.Sprintf("https://forum.example/thread/%d", i),
			}}}, nil
		}).AnyTimes()

	p := newPipeline(t, testConfig(), primary)
	result, err := p.Analyze(context.Background(), subjectB, Options{})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.FraudScore, 75)
	assert.Contains(t, []model.RiskLevel{model.RiskHigh, model.RiskCritical}, result.RiskLevel)
	assert.Contains(t, []model.Action{model.ActionReject, model.ActionManualReview}, result.RecommendedAction)
	// Red flags in the description send triage straight to the deep strategy
	assert.Equal(t, model.StrategyDeep, result.Triage.Strategy.Name)
	assert.False(t, result.Collection.EarlyTerminated)
}

func TestAnalyze_EnhancedUpgradesStrategy(t *testing.T) {
	primary := newPrimary(t)
	primary.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(legitimacyResponder()).AnyTimes()

	p := newPipeline(t, testConfig(), primary)
	result, err := p.Analyze(context.Background(), subjectA, Options{Enhanced: true})

	require.NoError(t, err)
	assert.Equal(t, model.StrategyMedium, result.Triage.Strategy.Name)
	assert.Equal(t, 5, result.Collection.QueriesIssued)
	require.NotEmpty(t, result.Evidence)
	assert.Equal(t, result.EvidenceBreakdown.Total, len(result.Evidence))
}

func TestAnalyze_QuotaExhaustionAborts(t *testing.T) {
	primary := newPrimary(t)
	primary.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, connector.NewError(connector.ErrorQuotaExhausted, "searchapi", "daily quota used", nil)).
		Times(1)

	p := newPipeline(t, testConfig(), primary)
	result, err := p.Analyze(context.Background(), subjectA, Options{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, connector.ErrQuotaExhausted))
	assert.True(t, connector.IsQuotaExhausted(err))
}

func TestAnalyze_PanicDegrades(t *testing.T) {
	primary := newPrimary(t)
	primary.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, connector.SearchOptions) (*connector.SearchResponse, error) {
			panic("connector exploded")
		})

	p := newPipeline(t, testConfig(), primary)
	result, err := p.Analyze(context.Background(), subjectA, Options{})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Degraded)
	assert.Equal(t, 50, result.FraudScore)
	assert.Equal(t, model.RiskMedium, result.RiskLevel)
	assert.Equal(t, 0, result.Confidence)
	assert.Equal(t, model.ActionManualReview, result.RecommendedAction)
	assert.Equal(t, model.QualityMinimal, result.EvidenceQuality)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "connector exploded")
}

func TestAnalyze_ParallelPanicDegrades(t *testing.T) {
	primary := newPrimary(t)
	primary.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, connector.SearchOptions) (*connector.SearchResponse, error) {
			panic("connector exploded")
		}).AnyTimes()

	cfg := testConfig()
	cfg.Collection.Parallel = true
	p := newPipeline(t, cfg, primary)

	var result *model.AnalysisResult
	var err error
	require.NotPanics(t, func() {
		result, err = p.Analyze(context.Background(), subjectA, Options{})
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Degraded)
	assert.Equal(t, 50, result.FraudScore)
	assert.Equal(t, model.ActionManualReview, result.RecommendedAction)
	assert.Equal(t, model.QualityMinimal, result.EvidenceQuality)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "connector exploded")
}

func TestAnalyze_EarlyTerminationReportsIssuedQueries(t *testing.T) {
	primary := newPrimary(t)
	var issued []string
	primary.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, q string, _ connector.SearchOptions) (*connector.SearchResponse, error) {
			issued = append(issued, q)
			return &connector.SearchResponse{Source: "searchapi", Query: q, Results: []connector.SearchResult{{
				Title: "FCA warning list: Subject A",
				URL:   "https://www.fca.org.uk/news/warnings/subject-a",
			}}}, nil
		}).Times(1)

	p := newPipeline(t, testConfig(), primary)
	result, err := p.Analyze(context.Background(), subjectA, Options{})

	require.NoError(t, err)
	require.NotNil(t, result.Collection)
	assert.True(t, result.Collection.EarlyTerminated)
	assert.Equal(t, 1, result.Collection.QueriesIssued)
	assert.Equal(t, issued, result.Collection.Queries)
}

func TestAnalyze_TransientErrorsStillScore(t *testing.T) {
	primary := newPrimary(t)
	primary.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, connector.NewError(connector.ErrorTransient, "searchapi", "connection reset", nil)).
		AnyTimes()

	cfg := testConfig()
	cfg.Source.Fallback.Disabled = true
	p := newPipeline(t, cfg, primary)
	result, err := p.Analyze(context.Background(), subjectA, Options{})

	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.Equal(t, 3, result.Collection.SourcesUnavailable)
	assert.Equal(t, model.QualityMinimal, result.EvidenceQuality)
	assert.Contains(t, result.Warnings, "3 evidence queries failed and were skipped")
}

func TestAnalyze_InvalidInput(t *testing.T) {
	p := newPipeline(t, testConfig(), newPrimary(t))

	result, err := p.Analyze(context.Background(), model.SubjectProfile{Name: "  "}, Options{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsInputError(err))
}

func TestAnalyze_NarrativeDisabled(t *testing.T) {
	primary := newPrimary(t)
	primary.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(legitimacyResponder()).AnyTimes()

	cfg := testConfig()
	cfg.Narrative.Enabled = false
	p := newPipeline(t, cfg, primary)
	result, err := p.Analyze(context.Background(), subjectA, Options{})

	require.NoError(t, err)
	assert.Nil(t, result.Narrative)
}

func TestAnalysisResult_JSONRoundTrip(t *testing.T) {
	primary := newPrimary(t)
	primary.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(legitimacyResponder()).AnyTimes()

	p := newPipeline(t, testConfig(), primary)
	result, err := p.Analyze(context.Background(), subjectA, Options{Enhanced: true})
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded model.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &decoded))

	if diff := cmp.Diff(result, &decoded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_RequiresPrimary(t *testing.T) {
	_, err := New(testConfig(), Components{})

	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "source.primary", cfgErr.Key)
}

func TestStagePath(t *testing.T) {
	assert.Empty(t, stagePath(nil))

	transitions := []runctx.Transition{
		{From: runctx.StageInit, To: runctx.StageTriaging},
		{From: runctx.StageTriaging, To: runctx.StageFailed},
	}
	assert.Equal(t, "init>triaging>failed", stagePath(transitions))
}
