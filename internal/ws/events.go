package ws

import (
	"encoding/json"
	"errors"

	"github.com/Mikhail-2byte/Dnd-version2/internal/dice"
	"github.com/Mikhail-2byte/Dnd-version2/internal/service"
	"github.com/google/uuid"
)

// ErrUnknownEvent 表示入站事件类型无法识别或缺少 game_id。
var ErrUnknownEvent = errors.New("unknown event")

// Event 是入站事件的标记联合：每种事件一个变体，
// 在通道边界解码一次，由协调器穷举匹配。
type Event interface {
	game() uuid.UUID
}

type JoinEvent struct {
	GameID uuid.UUID `json:"game_id"`
}

type TokenMoveEvent struct {
	GameID  uuid.UUID `json:"game_id"`
	TokenID uuid.UUID `json:"token_id"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
}

type TokenCreateEvent struct {
	GameID   uuid.UUID `json:"game_id"`
	Name     string    `json:"name"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	ImageURL *string   `json:"image_url"`
}

type TokenDeleteEvent struct {
	GameID  uuid.UUID `json:"game_id"`
	TokenID uuid.UUID `json:"token_id"`
}

type DiceRollEvent struct {
	GameID uuid.UUID `json:"game_id"`
	Count  int       `json:"count"`
	Faces  int       `json:"faces"`
}

func (e JoinEvent) game() uuid.UUID        { return e.GameID }
func (e TokenMoveEvent) game() uuid.UUID   { return e.GameID }
func (e TokenCreateEvent) game() uuid.UUID { return e.GameID }
func (e TokenDeleteEvent) game() uuid.UUID { return e.GameID }
func (e DiceRollEvent) game() uuid.UUID    { return e.GameID }

// DecodeEvent 把一条 JSON 消息解码成对应的事件变体。
func DecodeEvent(data []byte) (Event, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	var (
		ev  Event
		err error
	)
	switch env.Type {
	case "game_join":
		var e JoinEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case "token_move":
		var e TokenMoveEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case "token_create":
		var e TokenCreateEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case "token_delete":
		var e TokenDeleteEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case "dice_roll":
		// 原协议允许缺省参数：一颗 d20。
		e := DiceRollEvent{Count: 1, Faces: 20}
		err = json.Unmarshal(data, &e)
		ev = e
	default:
		return nil, ErrUnknownEvent
	}
	if err != nil {
		return nil, err
	}
	if ev.game() == uuid.Nil {
		return nil, ErrUnknownEvent
	}
	return ev, nil
}

// EventName 返回事件在线上协议中的类型名，用于指标打点。
func EventName(ev Event) string {
	switch ev.(type) {
	case JoinEvent:
		return "game_join"
	case TokenMoveEvent:
		return "token_move"
	case TokenCreateEvent:
		return "token_create"
	case TokenDeleteEvent:
		return "token_delete"
	case DiceRollEvent:
		return "dice_roll"
	default:
		return "unknown"
	}
}

// 出站事件。除 game:state 与 error 为单播外，其余在房间内广播。

type GameStateEvent struct {
	Type    string              `json:"type"`
	Game    service.GameDTO     `json:"game"`
	Tokens  []service.TokenDTO  `json:"tokens"`
	Players []service.PlayerDTO `json:"players"`
}

type PlayerJoinedEvent struct {
	Type     string    `json:"type"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

type TokenMovedEvent struct {
	Type    string    `json:"type"`
	TokenID uuid.UUID `json:"token_id"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	MovedBy uuid.UUID `json:"moved_by"`
}

type TokenCreatedEvent struct {
	Type  string           `json:"type"`
	Token service.TokenDTO `json:"token"`
}

type TokenDeletedEvent struct {
	Type    string    `json:"type"`
	TokenID uuid.UUID `json:"token_id"`
}

type DiceRolledEvent struct {
	Type     string         `json:"type"`
	GameID   uuid.UUID      `json:"game_id"`
	UserID   uuid.UUID      `json:"user_id"`
	Username string         `json:"username"`
	Count    int            `json:"count"`
	Faces    int            `json:"faces"`
	Rolls    []dice.DieRoll `json:"rolls"`
	Total    int            `json:"total"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
