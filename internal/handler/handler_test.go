package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/coop-lending/internal/config"
	"github.com/Dan9191/coop-lending/internal/middleware"
	"github.com/Dan9191/coop-lending/internal/models"
	"github.com/Dan9191/coop-lending/internal/repository"
	"github.com/Dan9191/coop-lending/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testEnv struct {
	router    *mux.Router
	repo      *repository.MemoryRepository
	loan      models.Loan
	guarantor models.Member
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	repo := repository.NewMemoryRepository()
	owner := repo.AddMember(models.Member{MemberNumber: "M-001", FullName: "Owner"})
	guarantor := repo.AddMember(models.Member{MemberNumber: "M-002", FullName: "Grace Guarantor"})
	loan, err := repo.AddLoan(models.Loan{MemberID: owner.ID, LoanNumber: "LN-1", AmountRequested: decimal.NewFromInt(800)})
	require.NoError(t, err)
	require.NoError(t, repo.AddInvitation(models.Invitation{
		LoanID:           loan.ID,
		GuarantorID:      guarantor.ID,
		AmountGuaranteed: decimal.NewNullDecimal(decimal.NewFromInt(800)),
	}))

	h := NewHandler(service.NewService(repo, log, nil), log)
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	auth := r.PathPrefix("/").Subrouter()
	auth.Use(middleware.AuthMiddleware(&config.Config{JWTSecret: testSecret}))
	h.Register(auth)

	return &testEnv{router: r, repo: repo, loan: loan, guarantor: guarantor}
}

func token(t *testing.T, memberID uuid.UUID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   memberID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (e *testEnv) do(t *testing.T, method, path string, memberID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if memberID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+token(t, memberID))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do(t, http.MethodGet, "/health", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecordDecision(t *testing.T) {
	env := setupTestRouter(t)
	path := "/loans/" + env.loan.ID.String() + "/guarantees/decision"

	w := env.do(t, http.MethodPost, path, env.guarantor.ID, map[string]string{"decision": "accepted"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res service.DecisionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.ConsensusReached)
	assert.Equal(t, models.LoanAwaitingAdmin, res.LoanStatus)
	require.NotNil(t, res.Record)
	assert.Equal(t, env.guarantor.ID, res.Record.GuarantorID)
	assert.True(t, res.Record.AmountGuaranteed.Equal(decimal.NewFromInt(800)))

	w = env.do(t, http.MethodGet, "/loans/"+env.loan.ID.String()+"/guarantees", env.guarantor.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records []models.GuaranteeRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 1)

	w = env.do(t, http.MethodGet, "/loans/"+env.loan.ID.String()+"/consensus", env.guarantor.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var c service.ConsensusResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.True(t, c.Reached)
	assert.Equal(t, 1, c.ValidGuarantorCount)
}

func TestRecordDecisionErrors(t *testing.T) {
	env := setupTestRouter(t)
	path := "/loans/" + env.loan.ID.String() + "/guarantees/decision"

	cases := []struct {
		name   string
		path   string
		member uuid.UUID
		body   any
		status int
	}{
		{"no token", path, uuid.Nil, map[string]string{"decision": "accepted"}, http.StatusUnauthorized},
		{"pending is not a decision", path, env.guarantor.ID, map[string]string{"decision": "pending"}, http.StatusBadRequest},
		{"missing decision", path, env.guarantor.ID, map[string]string{}, http.StatusBadRequest},
		{"bad loan id", "/loans/not-a-uuid/guarantees/decision", env.guarantor.ID, map[string]string{"decision": "accepted"}, http.StatusBadRequest},
		{"unknown loan", "/loans/" + uuid.NewString() + "/guarantees/decision", env.guarantor.ID, map[string]string{"decision": "accepted"}, http.StatusNotFound},
		{"not invited", path, uuid.New(), map[string]string{"decision": "declined"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tc.path, tc.member, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}

	assert.Empty(t, env.repo.Notifications())
}

func TestInvalidToken(t *testing.T) {
	env := setupTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/loans/"+env.loan.ID.String()+"/consensus", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
