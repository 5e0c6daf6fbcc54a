package campaigns

import (
	"reflect"
	"testing"
	"time"

	"github.com/foxzi/coldreach/internal/web/backend"
)

func emails(replies ...int) []backend.RawEmail {
	out := make([]backend.RawEmail, len(replies))
	for i, n := range replies {
		out[i] = backend.RawEmail{ID: string(rune('a' + i)), RecipientEmail: "lead@example.com"}
		for j := 0; j < n; j++ {
			out[i].Replies = append(out[i].Replies, backend.RawReply{ID: "r"})
		}
	}
	return out
}

func TestTransform(t *testing.T) {
	tests := []struct {
		name         string
		emails       []backend.RawEmail
		wantSent     int
		wantReplies  int
		wantRate     float64
		wantStage    Stage
		wantStatus   string
		wantProgress int
	}{
		{"no emails", nil, 0, 0, 0, StageDraft, "Draft", 0},
		{"empty emails", []backend.RawEmail{}, 0, 0, 0, StageDraft, "Draft", 0},
		{"sent no replies", emails(0, 0, 0), 3, 0, 0, StageActive, "Active", 25},
		{"sent with replies", emails(1, 0, 2, 0), 4, 3, 75, StageActive, "Active", 50},
		{"one reply", emails(0, 0, 0, 0, 1), 5, 1, 20, StageActive, "Active", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(backend.RawCampaign{ID: "c1", Name: "Alpha", Emails: tt.emails})
			if got.Sent != tt.wantSent {
				t.Errorf("Sent = %d, want %d", got.Sent, tt.wantSent)
			}
			if got.Replies != tt.wantReplies {
				t.Errorf("Replies = %d, want %d", got.Replies, tt.wantReplies)
			}
			if got.ReplyRate != tt.wantRate {
				t.Errorf("ReplyRate = %v, want %v", got.ReplyRate, tt.wantRate)
			}
			if got.Stage != tt.wantStage {
				t.Errorf("Stage = %v, want %v", got.Stage, tt.wantStage)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", got.Status, tt.wantStatus)
			}
			if got.Progress != tt.wantProgress {
				t.Errorf("Progress = %d, want %d", got.Progress, tt.wantProgress)
			}
		})
	}
}

func TestTransformIdempotent(t *testing.T) {
	raw := backend.RawCampaign{
		ID:        "c1",
		Name:      "Alpha",
		Goal:      "Book demos",
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Emails:    emails(1, 0),
	}

	first := Transform(raw)
	second := Transform(raw)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Transform() not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestTransformDoesNotAlias(t *testing.T) {
	raw := backend.RawCampaign{ID: "c1", Emails: emails(1)}
	got := Transform(raw)

	got.Emails[0].RecipientEmail = "changed@example.com"
	got.Emails[0].Replies[0].ID = "changed"

	if raw.Emails[0].RecipientEmail != "lead@example.com" || raw.Emails[0].Replies[0].ID != "r" {
		t.Error("mutating the view model changed the raw campaign")
	}
}

func TestTransformAllNil(t *testing.T) {
	got := TransformAll(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("TransformAll(nil) = %#v, want empty slice", got)
	}
}

func TestSummarize(t *testing.T) {
	cs := TransformAll([]backend.RawCampaign{
		{ID: "a", Emails: emails(1, 0, 0, 1)},
		{ID: "b", Emails: emails(0)},
		{ID: "c"},
	})

	got := Summarize(cs)
	want := Summary{Campaigns: 3, Active: 2, Drafts: 1, Sent: 5, Replies: 2, ReplyRate: 40}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}

	if empty := Summarize(nil); empty != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", empty)
	}
}
