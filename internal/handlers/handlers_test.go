package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storagemarket/db"
	"storagemarket/internal/handlers/testutils"
	"storagemarket/internal/market"
)

// stubStore implements the slice of market.Store the handler tests walk
// through. Unimplemented methods panic via the embedded nil interface.
type stubStore struct {
	market.Store
	needs  map[string]*db.Need
	refSeq int
}

func newStubStore() *stubStore {
	return &stubStore{needs: map[string]*db.Need{}}
}

func (s *stubStore) CreateNeed(_ context.Context, n *db.Need) error {
	s.refSeq++
	n.Reference = fmt.Sprintf("STK-%d-%05d", time.Now().Year(), s.refSeq)
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	clone := *n
	s.needs[n.ID] = &clone
	return nil
}

func (s *stubStore) GetNeed(_ context.Context, id string) (*db.Need, error) {
	n, ok := s.needs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (s *stubStore) TransitionNeed(_ context.Context, id, from, to string) error {
	n, ok := s.needs[id]
	if !ok {
		return db.ErrNotFound
	}
	if n.Status != from {
		return db.ErrConflict
	}
	n.Status = to
	return nil
}

func (s *stubStore) GetNeedsByOwner(_ context.Context, orgID string, limit, offset int) ([]db.Need, error) {
	var out []db.Need
	for _, n := range s.needs {
		if n.OwnerOrgID == orgID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func newTestHandler(store market.Store) *Handler {
	engine := market.NewEngine(store, market.Policy{})
	return NewHandler(engine, nil, zap.NewNop().Sugar())
}

func needBody(t *testing.T) []byte {
	t.Helper()
	deadline := time.Now().Add(7 * 24 * time.Hour)
	body, err := json.Marshal(db.Need{
		StorageType: "ambient",
		Volume:      db.Volume{Quantity: 100, Unit: "pallets"},
		Window:      db.DateWindow{StartDate: deadline.Add(24 * time.Hour)},
		Location:    db.Location{Country: "FR", City: "Paris"},
		Deadline:    deadline,
	})
	require.NoError(t, err)
	return body
}

func authenticate(req *http.Request) {
	req.Header.Set("X-Org-ID", "org-1")
	req.Header.Set("X-Org-Name", "Acme Industries")
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Type", "industrial")
}

func TestPingHandler(t *testing.T) {
	h := newTestHandler(newStubStore())
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()

	h.PingHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestCreateNeedRequiresOrgHeader(t *testing.T) {
	h := newTestHandler(newStubStore())
	req := httptest.NewRequest(http.MethodPost, "/api/needs/new", bytes.NewReader(needBody(t)))
	rec := httptest.NewRecorder()

	h.CreateNeedHandler(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateNeedHandler(t *testing.T) {
	h := newTestHandler(newStubStore())
	req := httptest.NewRequest(http.MethodPost, "/api/needs/new", bytes.NewReader(needBody(t)))
	authenticate(req)
	rec := httptest.NewRecorder()

	h.CreateNeedHandler(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created db.Need
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, strings.HasPrefix(created.Reference, "STK-"))
	require.Equal(t, db.NeedDraft, created.Status)
	require.Equal(t, "org-1", created.OwnerOrgID)
}

func TestCreateNeedInvalidJSON(t *testing.T) {
	h := newTestHandler(newStubStore())
	req := httptest.NewRequest(http.MethodPost, "/api/needs/new", strings.NewReader("{not json"))
	authenticate(req)
	rec := httptest.NewRecorder()

	h.CreateNeedHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateNeedValidationError(t *testing.T) {
	h := newTestHandler(newStubStore())
	body, err := json.Marshal(db.Need{StorageType: "antigravity"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/needs/new", bytes.NewReader(body))
	authenticate(req)
	rec := httptest.NewRecorder()

	h.CreateNeedHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown storage type")
}

func TestGetNeedNotFound(t *testing.T) {
	h := newTestHandler(newStubStore())
	req := httptest.NewRequest(http.MethodGet, "/api/needs/missing", nil)
	authenticate(req)
	req = testutils.WithChiURLParams(req, map[string]string{"needId": "missing"})
	rec := httptest.NewRecorder()

	h.GetNeedHandler(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func createNeedViaHandler(t *testing.T, h *Handler) db.Need {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/needs/new", bytes.NewReader(needBody(t)))
	authenticate(req)
	rec := httptest.NewRecorder()
	h.CreateNeedHandler(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created db.Need
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created
}

func TestPublishNeedHandler(t *testing.T) {
	h := newTestHandler(newStubStore())
	created := createNeedViaHandler(t, h)

	req := httptest.NewRequest(http.MethodPut, "/api/needs/"+created.ID+"/publish", nil)
	authenticate(req)
	req = testutils.WithChiURLParams(req, map[string]string{"needId": created.ID})
	rec := httptest.NewRecorder()

	h.PublishNeedHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var published db.Need
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &published))
	require.Equal(t, db.NeedPublished, published.Status)
}

func TestPublishNeedOfAnotherOrgIsForbidden(t *testing.T) {
	h := newTestHandler(newStubStore())
	created := createNeedViaHandler(t, h)

	req := httptest.NewRequest(http.MethodPut, "/api/needs/"+created.ID+"/publish", nil)
	req.Header.Set("X-Org-ID", "org-2")
	req = testutils.WithChiURLParams(req, map[string]string{"needId": created.ID})
	rec := httptest.NewRecorder()

	h.PublishNeedHandler(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPublishNeedTwiceConflicts(t *testing.T) {
	h := newTestHandler(newStubStore())
	created := createNeedViaHandler(t, h)

	for _, want := range []int{http.StatusOK, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPut, "/api/needs/"+created.ID+"/publish", nil)
		authenticate(req)
		req = testutils.WithChiURLParams(req, map[string]string{"needId": created.ID})
		rec := httptest.NewRecorder()

		h.PublishNeedHandler(rec, req)

		require.Equal(t, want, rec.Code)
	}
}

func TestGetMyNeedsHandler(t *testing.T) {
	h := newTestHandler(newStubStore())
	createNeedViaHandler(t, h)
	createNeedViaHandler(t, h)

	req := httptest.NewRequest(http.MethodGet, "/api/needs/my", nil)
	authenticate(req)
	rec := httptest.NewRecorder()

	h.GetMyNeedsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var needs []db.Need
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &needs))
	require.Len(t, needs, 2)
}

func TestGetPlansHandler(t *testing.T) {
	h := newTestHandler(newStubStore())
	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions/plans", nil)
	rec := httptest.NewRecorder()

	h.GetPlansHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var plans []market.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 3)
	require.Equal(t, db.TierGuest, plans[0].Tier)
	require.Equal(t, -1, plans[2].Limits.MaxSites)
}
