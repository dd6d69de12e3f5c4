package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/redmonkez12/cicero/internal/apperr"
	"github.com/redmonkez12/cicero/internal/auth"
	"github.com/redmonkez12/cicero/internal/httputil"
	"github.com/redmonkez12/cicero/internal/logging"
)

// Handler serves the generation endpoints.
type Handler struct {
	pipeline *Pipeline
}

func NewHandler(pipeline *Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

// OptionsResponse lists the values accepted by Generate.
type OptionsResponse struct {
	Months    []string `json:"months"`
	Durations []string `json:"durations"`
	Interests []string `json:"interests"`
}

// FragmentEvent is the data of a "fragment" event.
type FragmentEvent struct {
	Text string `json:"text"`
}

// DoneEvent is the data of the final "done" event.
type DoneEvent struct {
	TripID  int64  `json:"trip_id,omitempty"`
	Saved   bool   `json:"saved"`
	Message string `json:"message,omitempty"`
}

// Options handles GET /generate/options.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, OptionsResponse{
		Months:    Months,
		Durations: Durations,
		Interests: Interests,
	}, http.StatusOK)
}

// Generate handles POST /generate. Request errors are JSON apologies;
// once streaming starts the response is text/event-stream carrying
// "fragment" events followed by one "done" or "error" event.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondApology(w, r, apperr.New(apperr.KindAuth, ""))
		return
	}

	params, err := decodeParams(r)
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondErrorWithCode(w, "streaming unsupported", httputil.CodeStreamUnsupported, http.StatusInternalServerError)
		return
	}

	run, err := h.pipeline.Start(r.Context(), userID, params)
	if err != nil {
		httputil.RespondApology(w, r, err)
		return
	}

	// The stream outlives the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Warn("failed to lift write deadline", "error", err.Error())
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	broken := false
	for fragment := range run.Fragments() {
		if broken {
			continue
		}
		if err := writeEvent(w, "fragment", FragmentEvent{Text: fragment}); err != nil {
			logger.Warn("client went away during generation", "error", err.Error())
			broken = true
			run.Cancel()
			continue
		}
		flusher.Flush()
	}

	result, err := run.Wait()
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		_ = writeEvent(w, "error", httputil.Apology(err))
	case result.PersistErr != nil:
		_ = writeEvent(w, "done", DoneEvent{
			Saved:   false,
			Message: "your itinerary was generated but could not be saved: " + httputil.Apology(result.PersistErr).Error,
		})
	default:
		_ = writeEvent(w, "done", DoneEvent{TripID: result.Trip.ID, Saved: true})
	}
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// decodeParams accepts a JSON body or an HTML form post.
func decodeParams(r *http.Request) (Params, error) {
	var p Params
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&p)
		return p, err
	}

	if err := r.ParseForm(); err != nil {
		return p, err
	}
	p.Destination = r.PostForm.Get("destination")
	p.Month = r.PostForm.Get("month")
	p.Duration = r.PostForm.Get("duration")
	p.Interests = r.PostForm["interests"]
	return p, nil
}
