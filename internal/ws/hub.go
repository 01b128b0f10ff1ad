package ws

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type actionKind int

const (
	// actionEvent 是客户端发来的入站事件。
	actionEvent actionKind = iota
	// actionDetach 把连接从旧房间摘除（换房间时），连接保持存活。
	actionDetach
	// actionLeave 在断开后把连接从其房间的成员集中摘除。
	actionLeave
	// actionNotify 是 HTTP 写路径完成后的同步动作：重建缓存并广播 payload。
	actionNotify
)

type action struct {
	kind    actionKind
	client  *Client
	event   Event
	payload []byte
}

// Hub 是进程级房间注册表：维护 gameID 到 RoomHub 的映射，
// 以及每个连接当前所在的房间。空房间立即从映射中摘除。
// hub.mu 同时保护 rooms 映射和各连接的 room/closed 字段，
// join 与断开竞态时不会留下孤儿成员。
type Hub struct {
	mu    sync.Mutex
	coord *Coordinator
	rooms map[uuid.UUID]*RoomHub
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uuid.UUID]*RoomHub)}
}

// Submit 把动作排入目标房间的串行队列，房间不存在时惰性创建 actor。
// pending 计数保证 actor 在仍有排队动作时不会自行退出。
func (h *Hub) Submit(gameID uuid.UUID, act action) {
	h.mu.Lock()
	rh := h.rooms[gameID]
	if rh == nil {
		rh = newRoomHub(h, gameID)
		h.rooms[gameID] = rh
		go rh.run()
	}
	rh.pending++
	h.mu.Unlock()
	rh.actions <- act
}

// Online 返回房间当前在线连接数，供 REST 接口复用。
func (h *Hub) Online(gameID uuid.UUID) int {
	h.mu.Lock()
	rh := h.rooms[gameID]
	h.mu.Unlock()
	if rh == nil {
		return 0
	}
	return int(rh.online.Load())
}

// condemnLocked 标记连接废弃并关闭其发送通道，恰好执行一次。
// 调用方必须持有 hub.mu。
func condemnLocked(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// RoomHub 是单个房间的 actor：一个 goroutine 顺序消费动作队列，
// 每个动作的 存储写入→缓存重建→广播 全程不会与同房间其他动作交错。
// 不同房间的 actor 完全并行。clients 集合只被本 actor 触碰。
type RoomHub struct {
	gameID  uuid.UUID
	hub     *Hub
	actions chan action
	clients map[*Client]struct{}
	pending int // 由 hub.mu 保护
	online  atomic.Int32
}

func newRoomHub(h *Hub, gameID uuid.UUID) *RoomHub {
	return &RoomHub{
		gameID:  gameID,
		hub:     h,
		actions: make(chan action, 256),
		clients: make(map[*Client]struct{}),
	}
}

func (rh *RoomHub) run() {
	for act := range rh.actions {
		rh.dispatch(act)
		rh.hub.mu.Lock()
		rh.pending--
		if rh.pending == 0 && len(rh.clients) == 0 {
			delete(rh.hub.rooms, rh.gameID)
			rh.hub.mu.Unlock()
			return
		}
		rh.hub.mu.Unlock()
	}
}

func (rh *RoomHub) dispatch(act action) {
	switch act.kind {
	case actionDetach, actionLeave:
		rh.remove(act.client)
	case actionEvent:
		rh.hub.coord.handle(rh, act.client, act.event)
	case actionNotify:
		rh.hub.coord.syncTokens(rh, act.payload)
	}
}

// register 把连接加入房间成员集。断开已经处理过的连接不再加入；
// 连接原先在别的房间时先从那边摘除（成员关系对连接互斥）。
func (rh *RoomHub) register(c *Client) bool {
	rh.hub.mu.Lock()
	if c.closed {
		rh.hub.mu.Unlock()
		return false
	}
	prev := c.room
	c.room = rh
	rh.hub.mu.Unlock()

	rh.clients[c] = struct{}{}
	rh.online.Store(int32(len(rh.clients)))
	if prev != nil && prev != rh {
		rh.hub.Submit(prev.gameID, action{kind: actionDetach, client: c})
	}
	return true
}

func (rh *RoomHub) remove(c *Client) {
	if _, ok := rh.clients[c]; !ok {
		return
	}
	delete(rh.clients, c)
	rh.online.Store(int32(len(rh.clients)))
	rh.hub.mu.Lock()
	if c.room == rh {
		c.room = nil
	}
	rh.hub.mu.Unlock()
}

// joined 判断连接当前是否是本房间成员。仅在 actor 内调用。
func (rh *RoomHub) joined(c *Client) bool {
	_, ok := rh.clients[c]
	return ok
}

// broadcast 把消息推给房间内全部成员，except 不为 nil 时跳过该连接。
// 发送缓冲打满的慢客户端直接踢掉，避免拖垮整个房间。
func (rh *RoomHub) broadcast(msg []byte, except *Client) {
	for c := range rh.clients {
		if c == except {
			continue
		}
		rh.hub.mu.Lock()
		if c.closed {
			rh.hub.mu.Unlock()
			delete(rh.clients, c)
			continue
		}
		select {
		case c.send <- msg:
			rh.hub.mu.Unlock()
		default:
			condemnLocked(c)
			if c.room == rh {
				c.room = nil
			}
			rh.hub.mu.Unlock()
			delete(rh.clients, c)
		}
	}
	rh.online.Store(int32(len(rh.clients)))
}
