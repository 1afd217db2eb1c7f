package events

import (
	"testing"
	"time"

	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
)

func TestEncode(t *testing.T) {
	original := "hallo"
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "Empty payload",
			event: QueueJoined{},
			want:  `{"type":"queue_joined"}`,
		},
		{
			name:  "Match found",
			event: MatchFound{SessionID: 7, PartnerID: 2, MatchScore: 33},
			want:  `{"type":"match_found","sessionId":7,"partnerId":2,"matchScore":33}`,
		},
		{
			name:  "Banned without reason",
			event: Banned{},
			want:  `{"type":"banned"}`,
		},
		{
			name:  "Error",
			event: Error{Error: "no active session"},
			want:  `{"type":"error","error":"no active session"}`,
		},
		{
			name: "Translated message",
			event: Message{
				ID: 1, Content: "hello", SenderID: 3, Timestamp: ts,
				IsTranslated: true, DetectedLanguage: "de", OriginalContent: &original,
			},
			want: `{"type":"message","id":1,"content":"hello","senderId":3,"timestamp":"2026-03-01T12:00:00Z","isTranslated":true,"detectedLanguage":"de","originalContent":"hallo"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.event)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Inbound
		wantErr bool
	}{
		{
			name:  "Join with preferences",
			input: `{"type":"join_queue","preferredGender":"female","country":"DE"}`,
			want:  Inbound{Type: TypeJoinQueue, PreferredGender: "female", Country: "DE"},
		},
		{
			name:  "Send message",
			input: `{"type":"send_message","content":"hi"}`,
			want:  Inbound{Type: TypeSendMessage, Content: "hi"},
		},
		{
			name:  "Typing",
			input: `{"type":"typing","isTyping":true}`,
			want:  Inbound{Type: TypeTyping, IsTyping: true},
		},
		{name: "Unknown type", input: `{"type":"teleport"}`, wantErr: true},
		{name: "Missing type", input: `{}`, wantErr: true},
		{name: "Malformed", input: `{"type":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.HasCode(err, errors.ErrCodeValidation) {
					t.Errorf("error code = %q, want VALIDATION_ERROR", errors.CodeOf(err))
				}
				return
			}
			if *got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}
