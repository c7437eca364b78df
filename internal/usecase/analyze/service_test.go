package analyze

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/domain"
)

type mockStore struct {
	exists    bool
	existsErr error
	url       string
	urlErr    error
	urlTTL    time.Duration
}

func (m *mockStore) Exists(context.Context, domain.ProcessingID, domain.ArtifactKind) (bool, error) {
	return m.exists, m.existsErr
}

func (m *mockStore) URLFor(_ context.Context, _ domain.ProcessingID, _ domain.ArtifactKind, ttl time.Duration) (string, error) {
	m.urlTTL = ttl
	return m.url, m.urlErr
}

type mockAnalyzer struct {
	gotURL   string
	gotQuery string
	resp     domain.AnalysisResponse
	err      error
}

func (m *mockAnalyzer) SendPreview(_ context.Context, previewURL, query string) (domain.AnalysisResponse, error) {
	m.gotURL = previewURL
	m.gotQuery = query
	return m.resp, m.err
}

type mockVariables struct {
	gotNames []string
	vars     map[string]domain.Variable
}

func (m *mockVariables) ExtractAll(_ context.Context, _ domain.AnalysisResponse, names []string) map[string]domain.Variable {
	m.gotNames = names
	return m.vars
}

func TestAnalyze_HappyPath(t *testing.T) {
	store := &mockStore{exists: true, url: "https://svc/artifacts/x/preview?sig=abc"}
	analyzer := &mockAnalyzer{resp: domain.AnalysisResponse{
		ConversationID: "conv-1",
		MessageID:      "msg-1",
		Answer:         "looks like an invoice",
		CreatedAt:      1724800000,
	}}
	vars := &mockVariables{vars: map[string]domain.Variable{
		VariableConfirmationRecord: {Name: VariableConfirmationRecord, Found: true, Value: "yes"},
		"amount":                   {Name: "amount"},
	}}
	svc := New(store, analyzer, vars, zap.NewNop())

	id := domain.NewProcessingID()
	result, err := svc.Analyze(context.Background(), id, []string{"amount"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if analyzer.gotURL != store.url {
		t.Errorf("analyzer got url %q", analyzer.gotURL)
	}
	if analyzer.gotQuery != defaultQuery {
		t.Errorf("query = %q", analyzer.gotQuery)
	}
	if len(vars.gotNames) != 2 || vars.gotNames[0] != VariableConfirmationRecord || vars.gotNames[1] != "amount" {
		t.Errorf("extracted names = %v", vars.gotNames)
	}
	if result.ProcessingID != id || result.ConversationID != "conv-1" || result.Answer != "looks like an invoice" {
		t.Errorf("result = %+v", result)
	}
	if !result.Variables[VariableConfirmationRecord].Found {
		t.Error("confirmation record lost")
	}
}

func TestAnalyze_MissingPreview(t *testing.T) {
	svc := New(&mockStore{exists: false}, &mockAnalyzer{}, &mockVariables{}, zap.NewNop())

	_, err := svc.Analyze(context.Background(), domain.NewProcessingID(), nil)
	if !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("err = %v, want ErrObjectNotFound", err)
	}
}

func TestAnalyze_ExistsCheckFailure(t *testing.T) {
	store := &mockStore{existsErr: domain.ErrStorageUnavailable}
	svc := New(store, &mockAnalyzer{}, &mockVariables{}, zap.NewNop())

	_, err := svc.Analyze(context.Background(), domain.NewProcessingID(), nil)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestAnalyze_SigningFailure(t *testing.T) {
	store := &mockStore{exists: true, urlErr: domain.ErrStorageUnavailable}
	svc := New(store, &mockAnalyzer{}, &mockVariables{}, zap.NewNop())

	_, err := svc.Analyze(context.Background(), domain.NewProcessingID(), nil)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestAnalyze_UpstreamFailure(t *testing.T) {
	store := &mockStore{exists: true, url: "https://svc/p"}
	analyzer := &mockAnalyzer{err: domain.ErrAnalysisService}
	svc := New(store, analyzer, &mockVariables{}, zap.NewNop())

	_, err := svc.Analyze(context.Background(), domain.NewProcessingID(), nil)
	if !errors.Is(err, domain.ErrAnalysisService) {
		t.Fatalf("err = %v, want ErrAnalysisService", err)
	}
}

func TestAnalyze_Options(t *testing.T) {
	store := &mockStore{exists: true, url: "https://svc/p"}
	analyzer := &mockAnalyzer{}
	svc := New(store, analyzer, &mockVariables{}, zap.NewNop()).
		WithQuery("Extract the total amount").
		WithURLTTL(2 * time.Minute)

	if _, err := svc.Analyze(context.Background(), domain.NewProcessingID(), nil); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analyzer.gotQuery != "Extract the total amount" {
		t.Errorf("query = %q", analyzer.gotQuery)
	}
	if store.urlTTL != 2*time.Minute {
		t.Errorf("ttl = %v", store.urlTTL)
	}

	// Zero values keep the defaults.
	svc = New(store, analyzer, &mockVariables{}, zap.NewNop()).WithQuery("").WithURLTTL(0)
	if svc.query != defaultQuery || svc.urlTTL != defaultURLTTL {
		t.Error("empty options must not clobber defaults")
	}
}
