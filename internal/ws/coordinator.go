package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Mikhail-2byte/Dnd-version2/internal/cache"
	"github.com/Mikhail-2byte/Dnd-version2/internal/dice"
	"github.com/Mikhail-2byte/Dnd-version2/internal/models"
	"github.com/Mikhail-2byte/Dnd-version2/internal/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GameStore 是协调器消费的持久化存储契约，由 service.GameService 实现。
type GameStore interface {
	GameByID(ctx context.Context, gameID uuid.UUID) (*models.GameSession, error)
	Participant(ctx context.Context, gameID, userID uuid.UUID) (*models.GameParticipant, error)
	IsMaster(ctx context.Context, gameID, userID uuid.UUID) (bool, error)
	Players(ctx context.Context, gameID uuid.UUID) ([]service.PlayerDTO, error)
	UserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	CreateToken(ctx context.Context, gameID uuid.UUID, name string, x, y float64, imageURL *string) (*models.Token, error)
	UpdateTokenPosition(ctx context.Context, tokenID uuid.UUID, x, y float64) (*models.Token, error)
	DeleteToken(ctx context.Context, tokenID uuid.UUID) error
	TokensByGame(ctx context.Context, gameID uuid.UUID) ([]models.Token, error)
}

// TokenCache 是协调器消费的次级缓存契约，由 cache.TokenCache 实现。
// 缓存故障不致命：写失败只记日志，读失败按 miss 回源。
type TokenCache interface {
	Replace(ctx context.Context, gameID uuid.UUID, tokens []models.Token) error
	Read(ctx context.Context, gameID uuid.UUID) ([]cache.CachedToken, error)
}

// Coordinator 编排 加入/鉴权/广播 协议：每个入站事件先解析身份、
// 对照存储检查权限，再按 存储→缓存→广播 的顺序落地。
// 它是唯一同时访问存储与缓存的组件。
type Coordinator struct {
	hub          *Hub
	store        GameStore
	tokens       TokenCache
	storeTimeout time.Duration
}

func NewCoordinator(store GameStore, tokens TokenCache, storeTimeout time.Duration) *Coordinator {
	co := &Coordinator{
		hub:          NewHub(),
		store:        store,
		tokens:       tokens,
		storeTimeout: storeTimeout,
	}
	co.hub.coord = co
	return co
}

// Hub 暴露注册表只读入口（在线人数等）。
func (co *Coordinator) Hub() *Hub { return co.hub }

// opCtx 给存储与缓存调用加上限时，超时的写入按失败处理，绝不当静默成功。
func (co *Coordinator) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), co.storeTimeout)
}

// Disconnect 处理连接关闭：废弃连接、撤销在飞意图并从注册表摘除。
// closed 置位后，已排队但尚未处理的动作会被各房间 actor 跳过。
func (co *Coordinator) Disconnect(c *Client) {
	co.hub.mu.Lock()
	room := c.room
	condemnLocked(c)
	co.hub.mu.Unlock()
	if room != nil {
		co.hub.Submit(room.gameID, action{kind: actionLeave, client: c})
	}
}

// handle 在房间 actor 内穷举匹配事件变体。
func (co *Coordinator) handle(rh *RoomHub, c *Client, ev Event) {
	co.hub.mu.Lock()
	closed := c.closed
	co.hub.mu.Unlock()
	if closed {
		return
	}
	switch e := ev.(type) {
	case JoinEvent:
		co.handleJoin(rh, c)
	case TokenMoveEvent:
		co.handleTokenMove(rh, c, e)
	case TokenCreateEvent:
		co.handleTokenCreate(rh, c, e)
	case TokenDeleteEvent:
		co.handleTokenDelete(rh, c, e)
	case DiceRollEvent:
		co.handleDiceRoll(rh, c, e)
	}
}

func (co *Coordinator) handleJoin(rh *RoomHub, c *Client) {
	ctx, cancel := co.opCtx()
	defer cancel()

	game, err := co.store.GameByID(ctx, rh.gameID)
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			co.unicastError(c, "Game not found")
			return
		}
		co.storeFailure(c, "game_join", err)
		return
	}
	if _, err := co.store.Participant(ctx, rh.gameID, c.userID); err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			co.unicastError(c, "Not a participant")
			return
		}
		co.storeFailure(c, "game_join", err)
		return
	}

	// 先算快照再进注册表：存储失败时动作整体作废，不会留下半加入状态。
	tokens, err := co.snapshotTokens(ctx, rh.gameID)
	if err != nil {
		co.storeFailure(c, "game_join", err)
		return
	}
	players, err := co.store.Players(ctx, rh.gameID)
	if err != nil {
		co.storeFailure(c, "game_join", err)
		return
	}

	if !rh.register(c) {
		return // 断开已先一步处理
	}

	co.unicast(c, GameStateEvent{
		Type:    "game:state",
		Game:    service.GameToDTO(game),
		Tokens:  tokens,
		Players: players,
	})
	// 只向其他成员通告加入，不回显给本人。
	rh.broadcast(marshal(PlayerJoinedEvent{Type: "player:joined", UserID: c.userID, Username: c.uname}), c)
}

// snapshotTokens 优先读缓存，miss 或缓存故障时回源存储并顺手重建缓存。
func (co *Coordinator) snapshotTokens(ctx context.Context, gameID uuid.UUID) ([]service.TokenDTO, error) {
	cached, err := co.tokens.Read(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("token cache read")
		cached = nil
	}
	if cached != nil {
		out := make([]service.TokenDTO, 0, len(cached))
		for _, ct := range cached {
			t := service.TokenDTO{ID: ct.ID, Name: ct.Name, X: ct.X, Y: ct.Y}
			if ct.ImageURL != "" {
				url := ct.ImageURL
				t.ImageURL = &url
			}
			out = append(out, t)
		}
		return out, nil
	}
	stored, err := co.store.TokensByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	co.refreshCache(ctx, gameID, stored)
	out := make([]service.TokenDTO, 0, len(stored))
	for i := range stored {
		out = append(out, service.TokenToDTO(&stored[i]))
	}
	return out, nil
}

func (co *Coordinator) handleTokenMove(rh *RoomHub, c *Client, e TokenMoveEvent) {
	if !rh.joined(c) {
		co.unicastError(c, "Not in the game")
		return
	}
	if !validCoords(e.X, e.Y) {
		co.unicastError(c, "Coordinates must be between 0 and 100")
		return
	}
	ctx, cancel := co.opCtx()
	defer cancel()

	if !co.requireMaster(ctx, c, rh.gameID, "Only master can move tokens") {
		return
	}
	token, err := co.store.UpdateTokenPosition(ctx, e.TokenID, e.X, e.Y)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			co.unicastError(c, "Token not found")
			return
		}
		co.storeFailure(c, "token_move", err)
		return
	}
	co.rebuildCache(ctx, rh.gameID)
	rh.broadcast(marshal(TokenMovedEvent{
		Type:    "token:moved",
		TokenID: token.ID,
		X:       e.X,
		Y:       e.Y,
		MovedBy: c.userID,
	}), nil)
}

func (co *Coordinator) handleTokenCreate(rh *RoomHub, c *Client, e TokenCreateEvent) {
	if !rh.joined(c) {
		co.unicastError(c, "Not in the game")
		return
	}
	if e.Name == "" {
		co.unicastError(c, "Token name is required")
		return
	}
	if !validCoords(e.X, e.Y) {
		co.unicastError(c, "Coordinates must be between 0 and 100")
		return
	}
	ctx, cancel := co.opCtx()
	defer cancel()

	if !co.requireMaster(ctx, c, rh.gameID, "Only master can create tokens") {
		return
	}
	token, err := co.store.CreateToken(ctx, rh.gameID, e.Name, e.X, e.Y, e.ImageURL)
	if err != nil {
		co.storeFailure(c, "token_create", err)
		return
	}
	co.rebuildCache(ctx, rh.gameID)
	rh.broadcast(marshal(TokenCreatedEvent{Type: "token:created", Token: service.TokenToDTO(token)}), nil)
}

func (co *Coordinator) handleTokenDelete(rh *RoomHub, c *Client, e TokenDeleteEvent) {
	if !rh.joined(c) {
		co.unicastError(c, "Not in the game")
		return
	}
	ctx, cancel := co.opCtx()
	defer cancel()

	if !co.requireMaster(ctx, c, rh.gameID, "Only master can delete tokens") {
		return
	}
	if err := co.store.DeleteToken(ctx, e.TokenID); err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			co.unicastError(c, "Token not found")
			return
		}
		co.storeFailure(c, "token_delete", err)
		return
	}
	co.rebuildCache(ctx, rh.gameID)
	rh.broadcast(marshal(TokenDeletedEvent{Type: "token:deleted", TokenID: e.TokenID}), nil)
}

func (co *Coordinator) handleDiceRoll(rh *RoomHub, c *Client, e DiceRollEvent) {
	if !rh.joined(c) {
		co.unicastError(c, "Not in the game")
		return
	}
	ctx, cancel := co.opCtx()
	defer cancel()

	if _, err := co.store.Participant(ctx, rh.gameID, c.userID); err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			co.unicastError(c, "Not a participant")
			return
		}
		co.storeFailure(c, "dice_roll", err)
		return
	}
	result, err := dice.Roll(e.Count, e.Faces)
	if err != nil {
		co.unicastError(c, err.Error())
		return
	}
	// 掷骰结果广播给全部成员，包括掷骰者本人。
	rh.broadcast(marshal(DiceRolledEvent{
		Type:     "dice:rolled",
		GameID:   rh.gameID,
		UserID:   c.userID,
		Username: c.uname,
		Count:    e.Count,
		Faces:    e.Faces,
		Rolls:    result.Rolls,
		Total:    result.Total,
	}), nil)
}

// requireMaster 执行 master 权限门：非 master 只收到单播错误，
// 不产生任何状态变更或广播。
func (co *Coordinator) requireMaster(ctx context.Context, c *Client, gameID uuid.UUID, denied string) bool {
	isMaster, err := co.store.IsMaster(ctx, gameID, c.userID)
	if err != nil {
		co.storeFailure(c, "authorize", err)
		return false
	}
	if !isMaster {
		co.unicastError(c, denied)
		return false
	}
	return true
}

// NotifyTokensChanged 由 HTTP 写路径在存储落库后调用：动作排入房间
// actor，在那里重建缓存并把事件广播给在线成员，与 WebSocket 变更
// 走同一条串行队列。
func (co *Coordinator) NotifyTokensChanged(gameID uuid.UUID, ev interface{}) {
	co.hub.Submit(gameID, action{kind: actionNotify, payload: marshal(ev)})
}

func (co *Coordinator) syncTokens(rh *RoomHub, payload []byte) {
	ctx, cancel := co.opCtx()
	defer cancel()
	co.rebuildCache(ctx, rh.gameID)
	rh.broadcast(payload, nil)
}

// rebuildCache 在成功的变更后全量覆盖房间的 token 缓存。
// 任一环失败都只记日志：存储才是事实来源。
func (co *Coordinator) rebuildCache(ctx context.Context, gameID uuid.UUID) {
	tokens, err := co.store.TokensByGame(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("cache rebuild: list tokens")
		return
	}
	co.refreshCache(ctx, gameID, tokens)
}

func (co *Coordinator) refreshCache(ctx context.Context, gameID uuid.UUID, tokens []models.Token) {
	if err := co.tokens.Replace(ctx, gameID, tokens); err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("token cache replace")
	}
}

func (co *Coordinator) storeFailure(c *Client, op string, err error) {
	log.Error().Err(err).Str("op", op).Str("user_id", c.userID.String()).Msg("store call failed")
	co.unicastError(c, "Temporary failure, try again")
}

func (co *Coordinator) unicastError(c *Client, msg string) {
	co.unicast(c, ErrorEvent{Type: "error", Message: msg})
}

func (co *Coordinator) unicast(c *Client, ev interface{}) {
	msg := marshal(ev)
	co.hub.mu.Lock()
	defer co.hub.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func validCoords(x, y float64) bool {
	return x >= 0 && x <= 100 && y >= 0 && y <= 100
}

func marshal(ev interface{}) []byte {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("marshal outbound event")
		return []byte(`{"type":"error","message":"Internal error"}`)
	}
	return b
}
