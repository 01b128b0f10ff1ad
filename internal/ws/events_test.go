package ws

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestDecodeEvent(t *testing.T) {
	gameID := uuid.New()
	tokenID := uuid.New()

	tests := []struct {
		name string
		data string
		want Event
	}{
		{
			"game_join",
			fmt.Sprintf(`{"type":"game_join","game_id":"%s"}`, gameID),
			JoinEvent{GameID: gameID},
		},
		{
			"token_move",
			fmt.Sprintf(`{"type":"token_move","game_id":"%s","token_id":"%s","x":75,"y":80.5}`, gameID, tokenID),
			TokenMoveEvent{GameID: gameID, TokenID: tokenID, X: 75, Y: 80.5},
		},
		{
			"token_delete",
			fmt.Sprintf(`{"type":"token_delete","game_id":"%s","token_id":"%s"}`, gameID, tokenID),
			TokenDeleteEvent{GameID: gameID, TokenID: tokenID},
		},
		{
			"dice_roll",
			fmt.Sprintf(`{"type":"dice_roll","game_id":"%s","count":3,"faces":8}`, gameID),
			DiceRollEvent{GameID: gameID, Count: 3, Faces: 8},
		},
		{
			"dice_roll defaults to 1d20",
			fmt.Sprintf(`{"type":"dice_roll","game_id":"%s"}`, gameID),
			DiceRollEvent{GameID: gameID, Count: 1, Faces: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeEvent() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeEvent() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeEvent_TokenCreate(t *testing.T) {
	gameID := uuid.New()
	data := fmt.Sprintf(`{"type":"token_create","game_id":"%s","name":"orc","x":10,"y":20,"image_url":"http://img"}`, gameID)
	got, err := DecodeEvent([]byte(data))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	e, ok := got.(TokenCreateEvent)
	if !ok {
		t.Fatalf("DecodeEvent() = %T, want TokenCreateEvent", got)
	}
	if e.Name != "orc" || e.X != 10 || e.Y != 20 {
		t.Errorf("decoded %+v", e)
	}
	if e.ImageURL == nil || *e.ImageURL != "http://img" {
		t.Errorf("image_url = %v, want http://img", e.ImageURL)
	}
}

func TestDecodeEvent_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown type", `{"type":"chat_message","game_id":"x"}`},
		{"missing game_id", `{"type":"game_join"}`},
		{"not json", `nope`},
		{"bad uuid", `{"type":"game_join","game_id":"not-a-uuid"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeEvent([]byte(tt.data)); err == nil {
				t.Error("DecodeEvent() error = nil, want error")
			}
		})
	}
}

func TestDecodeEvent_UnknownIsSentinel(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"teleport"}`))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("error = %v, want ErrUnknownEvent", err)
	}
}
