package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusAccepted).
		BodyString("test").
		Write(w)

	if w.Code != http.StatusAccepted {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusAccepted)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger should not be set without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerEntriesRefresh(2025, 3).
		TriggerSuccessNotification("Entries submitted successfully.").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	for _, part := range []string{
		`"entries:refresh"`,
		`"show-notification"`,
		`"year":2025`,
		`"month":3`,
		`"type":"success"`,
		`"duration":3000`,
	} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_NotificationKinds(t *testing.T) {
	tests := []struct {
		build func(*HTMXResponseBuilder) *HTMXResponseBuilder
		want  string
	}{
		{func(b *HTMXResponseBuilder) *HTMXResponseBuilder { return b.TriggerErrorNotification("x") }, `"type":"error"`},
		{func(b *HTMXResponseBuilder) *HTMXResponseBuilder { return b.TriggerWarningNotification("x") }, `"type":"warning"`},
		{func(b *HTMXResponseBuilder) *HTMXResponseBuilder {
			return b.TriggerNotification(NotificationInfo, "x", 100)
		}, `"type":"info"`},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		tt.build(NewHTMXResponse()).Write(w)
		if !strings.Contains(w.Header().Get("HX-Trigger"), tt.want) {
			t.Errorf("HX-Trigger %s missing %s", w.Header().Get("HX-Trigger"), tt.want)
		}
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		resp   *HTMXResponseBuilder
		status int
	}{
		{"bad request", BadRequestError("bad <input>"), http.StatusBadRequest},
		{"internal", InternalServerError("boom"), http.StatusInternalServerError},
		{"too many", TooManyRequestsError("slow down"), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.resp.Write(w)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
				t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
			}
			if strings.Contains(w.Body.String(), "<input>") {
				t.Error("message was not escaped")
			}
		})
	}
}
