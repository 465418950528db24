package http

import (
	"net/http"
	"sort"
	"strconv"

	"gatepass/common/errs"
	"gatepass/common/vars"
	"gatepass/model"
	"gatepass/pricing"
)

// EventHttp serves the form-render data: the event snapshot and the
// pricing table. It reads the in-memory snapshot only; the refresh loop
// keeps it current.
type EventHttp struct{}

func RegisterEventHttp(mux *http.ServeMux) *EventHttp {
	in := &EventHttp{}

	mux.HandleFunc("GET /api/events", in.list)
	mux.HandleFunc("GET /api/events/{id}", in.get)

	return in
}

func (in *EventHttp) list(w http.ResponseWriter, r *http.Request) {
	events := vars.GetEvents()

	out := make([]model.EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, model.EventResponse{Event: ev, Pricing: pricing.Quotes(ev)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Event.ID < out[j].Event.ID })

	writeJSONResponse(w, http.StatusOK, out)
}

func (in *EventHttp) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid event id"})
		return
	}

	ev, ok := vars.GetEvent(id)
	if !ok {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusNotFound, Message: "Event not found"})
		return
	}

	writeJSONResponse(w, http.StatusOK, model.EventResponse{Event: ev, Pricing: pricing.Quotes(ev)})
}
