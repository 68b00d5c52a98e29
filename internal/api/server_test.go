package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedraw/stagedraw/internal/config"
	"github.com/stagedraw/stagedraw/internal/draw"
	"github.com/stagedraw/stagedraw/internal/record"
	"github.com/stagedraw/stagedraw/internal/store"
)

func newTestServer(t *testing.T) (*store.Store, *gin.Engine) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := store.Open(t.TempDir(), logger)
	require.NoError(t, err)

	ctrl := draw.NewController(s, draw.WithLogger(logger))
	srv := NewServer(s, ctrl, config.Default().Draw, logger)
	return s, srv.Router()
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestCollectionRoundTrip(t *testing.T) {
	_, r := newTestServer(t)

	lists := []record.List{{
		ListID:   "l1",
		Metadata: record.ListMetadata{Name: "Attendees"},
		Entries:  []record.Entry{{ID: "e1", Index: 0, Data: map[string]string{"name": "Ada"}}},
	}}
	w := do(t, r, http.MethodPut, "/api/collections/lists", lists)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/collections/lists", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]record.List](t, w)
	assert.Equal(t, lists, got)
}

func TestUnknownCollectionNames(t *testing.T) {
	_, r := newTestServer(t)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := do(t, r, method, "/api/collections/raffle", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		body := decode[map[string]string](t, w)
		assert.Equal(t, "UNKNOWN_COLLECTION", body["error"])
	}

	w := do(t, r, http.MethodPut, "/api/collections/raffle", []record.List{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutMalformedRecordsRejected(t *testing.T) {
	s, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/collections/prizes",
		bytes.NewBufferString(`{"not":"an array"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	prizes, err := s.ReadPrizes()
	require.NoError(t, err)
	assert.Empty(t, prizes)
}

func TestGetSingleRecordByID(t *testing.T) {
	s, r := newTestServer(t)
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p1", Name: "Mug", Quantity: 3}))
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p2", Name: "Hat", Quantity: 1}))

	w := do(t, r, http.MethodGet, "/api/collections/prizes?id=p2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[record.Prize](t, w)
	assert.Equal(t, "Hat", got.Name)

	w = do(t, r, http.MethodGet, "/api/collections/prizes?id=ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSingleRecord(t *testing.T) {
	s, r := newTestServer(t)
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p1", Name: "Mug", Quantity: 3}))
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p2", Name: "Hat", Quantity: 1}))

	w := do(t, r, http.MethodDelete, "/api/collections/prizes/p1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	prizes, err := s.ReadPrizes()
	require.NoError(t, err)
	require.Len(t, prizes, 1)
	assert.Equal(t, "p2", prizes[0].PrizeID)
}

func TestDeleteClearsCollection(t *testing.T) {
	s, r := newTestServer(t)
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p1", Name: "Mug", Quantity: 3}))

	w := do(t, r, http.MethodDelete, "/api/collections/prizes", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	prizes, err := s.ReadPrizes()
	require.NoError(t, err)
	assert.Empty(t, prizes)
}

func TestBatchFetchReturnsRequestedCollections(t *testing.T) {
	s, r := newTestServer(t)
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p1", Name: "Mug", Quantity: 3}))
	require.NoError(t, s.Upsert(store.Lists, record.List{ListID: "l1"}))

	w := do(t, r, http.MethodPost, "/api/collections/batch-fetch", map[string]any{
		"requests": []map[string]string{
			{"collection": "prizes"}, {"collection": "lists"}, {"collection": "winners"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Results map[string]json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Results, 3)

	var prizes []record.Prize
	require.NoError(t, json.Unmarshal(body.Results["prizes"], &prizes))
	require.Len(t, prizes, 1)
	assert.Equal(t, "Mug", prizes[0].Name)
}

func TestBatchFetchMixesSingleRecordsAndCollections(t *testing.T) {
	s, r := newTestServer(t)
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p1", Name: "Mug", Quantity: 3}))
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p2", Name: "Book", Quantity: 1}))
	require.NoError(t, s.Upsert(store.Lists, record.List{ListID: "l1"}))

	w := do(t, r, http.MethodPost, "/api/collections/batch-fetch", map[string]any{
		"requests": []map[string]string{
			{"collection": "prizes", "id": "p2"},
			{"collection": "lists"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Results map[string]json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)

	var prize record.Prize
	require.NoError(t, json.Unmarshal(body.Results["prizes/p2"], &prize))
	assert.Equal(t, "Book", prize.Name)

	var lists []record.List
	require.NoError(t, json.Unmarshal(body.Results["lists"], &lists))
	assert.Len(t, lists, 1)

	// An id that matches nothing fails the batch the way a single get does.
	w = do(t, r, http.MethodPost, "/api/collections/batch-fetch", map[string]any{
		"requests": []map[string]string{{"collection": "prizes", "id": "nope"}},
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	var e errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "RECORD_NOT_FOUND", e.Error)
}

func TestBatchSaveWritesEachCollection(t *testing.T) {
	s, r := newTestServer(t)

	w := do(t, r, http.MethodPost, "/api/collections/batch-save", map[string]any{
		"collections": map[string]any{
			"prizes": []record.Prize{{PrizeID: "p1", Name: "Mug", Quantity: 3}},
			"lists":  []record.List{{ListID: "l1"}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body batchSaveResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"prizes", "lists"}, body.Written)
	assert.Empty(t, body.Failed)

	prizes, err := s.ReadPrizes()
	require.NoError(t, err)
	assert.Len(t, prizes, 1)
}

func TestBatchSaveRejectsMalformedPayloadBeforeWriting(t *testing.T) {
	s, r := newTestServer(t)

	w := do(t, r, http.MethodPost, "/api/collections/batch-save", map[string]any{
		"collections": map[string]any{
			"prizes": []record.Prize{{PrizeID: "p1", Name: "Mug", Quantity: 3}},
			"lists":  "not an array",
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The well-formed prizes payload must not have been applied.
	prizes, err := s.ReadPrizes()
	require.NoError(t, err)
	assert.Empty(t, prizes)
}

func TestPickupToggle(t *testing.T) {
	s, r := newTestServer(t)
	require.NoError(t, s.Upsert(store.Winners,
		record.Winner{WinnerID: "w1", DisplayName: "Ada", Prize: "Mug"}))

	w := do(t, r, http.MethodPost, "/api/winners/w1/pickup", pickupRequest{PickedUp: true})
	require.Equal(t, http.StatusOK, w.Code)

	winners, err := s.ReadWinners()
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.True(t, winners[0].PickedUp)

	w = do(t, r, http.MethodPost, "/api/winners/ghost/pickup", pickupRequest{PickedUp: true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func seedDrawData(t *testing.T, s *store.Store) {
	t.Helper()
	list := record.List{ListID: "l1", Metadata: record.ListMetadata{Name: "Attendees"}}
	for i := 0; i < 5; i++ {
		list.Entries = append(list.Entries, record.Entry{
			ID: string(rune('a' + i)), Index: i,
			Data: map[string]string{"name": "Person"},
		})
	}
	require.NoError(t, s.Upsert(store.Lists, list))
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p1", Name: "Mug", Quantity: 5}))
}

func awaitPhase(t *testing.T, r *gin.Engine, want string) stateBody {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w := do(t, r, http.MethodGet, "/api/draw/state", nil)
		require.Equal(t, http.StatusOK, w.Code)
		st := decode[stateBody](t, w)
		if st.Phase == want {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("draw never reached phase %s", want)
	return stateBody{}
}

func TestDrawLifecycleOverHTTP(t *testing.T) {
	s, r := newTestServer(t)
	seedDrawData(t, s)

	zero := int64(0)
	w := do(t, r, http.MethodPost, "/api/draw/start", startDrawRequest{
		ListIDs:      []string{"l1"},
		PrizeID:      "p1",
		WinnersCount: 2,
		DelayMs:      &zero,
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	st := awaitPhase(t, r, "complete")
	assert.Equal(t, 2, st.RevealedCount)
	assert.Equal(t, 2, st.TotalWinners)
	assert.True(t, st.CanUndo)

	w = do(t, r, http.MethodPost, "/api/draw/undo", nil)
	require.Equal(t, http.StatusOK, w.Code)

	winners, err := s.ReadWinners()
	require.NoError(t, err)
	assert.Empty(t, winners)

	w = do(t, r, http.MethodPost, "/api/draw/undo", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "NOTHING_TO_UNDO", body["error"])
}

func TestStartDrawValidationErrors(t *testing.T) {
	s, r := newTestServer(t)
	seedDrawData(t, s)

	zero := int64(0)
	w := do(t, r, http.MethodPost, "/api/draw/start", startDrawRequest{
		PrizeID: "p1", WinnersCount: 1, DelayMs: &zero,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/draw/start", startDrawRequest{
		ListIDs: []string{"l1"}, PrizeID: "ghost", WinnersCount: 1, DelayMs: &zero,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/draw/start", startDrawRequest{
		ListIDs: []string{"l1"}, PrizeID: "p1", WinnersCount: 6, DelayMs: &zero,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
