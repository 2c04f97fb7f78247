package network

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Inbound
		wantErr error
	}{
		{"sync", `{"type":"SYNC"}`, Inbound{Type: MsgTypeSync, Pos: -1}, nil},
		{"play", `{"type":"PLAY_CHARACTER","card_id":3,"pos":4}`, Inbound{Type: MsgTypePlayCharacter, CardID: 3, Pos: 4}, nil},
		{"missing pos", `{"type":"PLACE_TRAP","trap_id":2}`, Inbound{Type: MsgTypePlaceTrap, TrapID: 2, Pos: -1}, nil},
		{"empty frame", ``, Inbound{Pos: -1}, nil},
		{"not json", `{type:`, Inbound{}, ErrInvalidJSON},
		{"wrong field type", `{"type":"PLAY_CHARACTER","card_id":"x"}`, Inbound{}, ErrInvalidPayload},
		{"array", `[1,2]`, Inbound{}, ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestErrorMessageOmitsEmptyCode(t *testing.T) {
	data, _ := json.Marshal(NewError("", "invalid JSON"))
	if string(data) != `{"type":"ERROR","message":"invalid JSON"}` {
		t.Errorf("unexpected encoding %s", data)
	}
}
