package generation

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/cicero/internal/auth"
	"github.com/redmonkez12/cicero/internal/httputil"
)

func postJSON(t *testing.T, h http.HandlerFunc, userID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

type sseEvent struct {
	name string
	data string
}

func parseEvents(body string) []sseEvent {
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		events = append(events, ev)
	}
	return events
}

func TestGenerate_StreamsFragmentsThenDone(t *testing.T) {
	store := &recordingStore{}
	h := NewHandler(NewPipeline(&fakeCompleter{fragments: []string{"Day 1: ", "temples"}}, store, Config{}))

	rec := postJSON(t, h.Generate, uuid.New(), kyoto())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseEvents(rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, sseEvent{"fragment", `{"text":"Day 1: "}`}, events[0])
	assert.Equal(t, sseEvent{"fragment", `{"text":"temples"}`}, events[1])
	assert.Equal(t, sseEvent{"done", `{"trip_id":1,"saved":true}`}, events[2])
	assert.Equal(t, 1, store.Len())
}

func TestGenerate_FormPost(t *testing.T) {
	store := &recordingStore{}
	h := NewHandler(NewPipeline(&fakeCompleter{fragments: []string{"ok"}}, store, Config{}))

	form := url.Values{
		"destination": {"Kyoto"},
		"month":       {"March"},
		"duration":    {"1 week"},
		"interests":   {"Outdoor and Nature", "Shopping"},
	}
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(auth.WithUserID(req.Context(), uuid.New()))
	rec := httptest.NewRecorder()
	h.Generate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, store.Len())
	assert.Equal(t, "One week", store.trips[0].Duration)
	assert.Equal(t, []string{"Outdoor and Nature", "Shopping"}, store.trips[0].Interests)
}

func TestGenerate_ValidationErrorIsJSONApology(t *testing.T) {
	completer := &fakeCompleter{}
	h := NewHandler(NewPipeline(completer, &recordingStore{}, Config{}))

	params := kyoto()
	params.Month = "Marchh"
	rec := postJSON(t, h.Generate, uuid.New(), params)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "do not mess with the code please", body.Error)
	assert.Equal(t, "validation_error", body.Code)
	assert.Equal(t, 0, completer.Calls())
}

func TestGenerate_UpstreamOpenFailure(t *testing.T) {
	h := NewHandler(NewPipeline(&fakeCompleter{openErr: errors.New("boom")}, &recordingStore{}, Config{}))

	rec := postJSON(t, h.Generate, uuid.New(), kyoto())

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"upstream_error"`)
}

func TestGenerate_MidStreamFailureSendsErrorEvent(t *testing.T) {
	h := NewHandler(NewPipeline(&fakeCompleter{fragments: []string{"Day 1"}, failWith: errors.New("reset")}, &recordingStore{}, Config{}))

	rec := postJSON(t, h.Generate, uuid.New(), kyoto())

	require.Equal(t, http.StatusOK, rec.Code)
	events := parseEvents(rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "fragment", events[0].name)
	assert.Equal(t, "error", events[1].name)
	assert.Contains(t, events[1].data, `"code":"upstream_error"`)
	assert.NotContains(t, events[1].data, "reset")
}

func TestGenerate_PersistFailureReportsUnsaved(t *testing.T) {
	h := NewHandler(NewPipeline(&fakeCompleter{fragments: []string{"Day 1"}}, &recordingStore{err: errors.New("disk full")}, Config{}))

	rec := postJSON(t, h.Generate, uuid.New(), kyoto())

	events := parseEvents(rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "done", events[1].name)

	var done DoneEvent
	require.NoError(t, json.Unmarshal([]byte(events[1].data), &done))
	assert.False(t, done.Saved)
	assert.Zero(t, done.TripID)
	assert.Contains(t, done.Message, "database error")
}

func TestGenerate_RequiresUser(t *testing.T) {
	h := NewHandler(NewPipeline(&fakeCompleter{}, &recordingStore{}, Config{}))

	rec := postJSON(t, h.Generate, uuid.Nil, kyoto())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptions(t *testing.T) {
	h := NewHandler(nil)
	rec := httptest.NewRecorder()
	h.Options(rec, httptest.NewRequest(http.MethodGet, "/generate/options", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body OptionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Months, 12)
	assert.Equal(t, Durations, body.Durations)
	assert.Len(t, body.Interests, 9)
}
