package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Mikhail-2byte/Dnd-version2/internal/auth"
	"github.com/Mikhail-2byte/Dnd-version2/internal/dice"
	"github.com/Mikhail-2byte/Dnd-version2/internal/models"
	"github.com/Mikhail-2byte/Dnd-version2/internal/service"
	"github.com/Mikhail-2byte/Dnd-version2/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层与 ws 协调器。
type Handler struct {
	userSvc *service.UserService
	gameSvc *service.GameService
	charSvc *service.CharacterService
	coord   *ws.Coordinator
}

func NewHandler(userSvc *service.UserService, gameSvc *service.GameService, charSvc *service.CharacterService, coord *ws.Coordinator) *Handler {
	return &Handler{userSvc: userSvc, gameSvc: gameSvc, charSvc: charSvc, coord: coord}
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Username) < 2 || len(req.Username) > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 72 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	result, err := h.userSvc.Register(req.Email, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email taken"})
			return
		}
		log.Error().Err(err).Str("email", req.Email).Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          result.User,
	})
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("email", req.Email).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          result.User,
	})
}

// RefreshToken 处理 token 刷新请求。
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.RefreshTokens(req.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("refresh token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Me 返回当前登录用户。
func (h *Handler) Me(c *gin.Context) {
	v, _ := c.Get("user")
	user, ok := v.(models.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, service.UserDTO{ID: user.ID, Email: user.Email, Username: user.Username})
}

// CreateGame 创建新游戏会话，当前用户成为 master。
func (h *Handler) CreateGame(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 255 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game name"})
		return
	}
	game, err := h.gameSvc.CreateGame(c.Request.Context(), req.Name, auth.GetUserID(c))
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("create game")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create game"})
		return
	}
	c.JSON(http.StatusCreated, service.GameToDTO(game))
}

// GameByInvite 按邀请码查询游戏。
func (h *Handler) GameByInvite(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	game, err := h.gameSvc.GameByInviteCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		log.Error().Err(err).Str("code", code).Msg("game by invite")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch game"})
		return
	}
	c.JSON(http.StatusOK, service.GameToDTO(game))
}

// JoinGame 以 player 身份加入游戏，这里是成为参与者的唯一入口，
// WebSocket 的 game_join 只接受已有参与者。
func (h *Handler) JoinGame(c *gin.Context) {
	gameID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	game, err := h.gameSvc.JoinGame(c.Request.Context(), gameID, auth.GetUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("join game")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join game"})
		return
	}
	c.JSON(http.StatusOK, service.GameToDTO(game))
}

// GameInfo 返回游戏详情。
func (h *Handler) GameInfo(c *gin.Context) {
	gameID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	game, err := h.gameSvc.GameByID(c.Request.Context(), gameID)
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("game info")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch game"})
		return
	}
	c.JSON(http.StatusOK, service.GameToDTO(game))
}

// ListTokens 返回一局游戏的全部棋盘 token。
func (h *Handler) ListTokens(c *gin.Context) {
	gameID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	tokens, err := h.gameSvc.TokensByGame(c.Request.Context(), gameID)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("list tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tokens"})
		return
	}
	out := make([]service.TokenDTO, 0, len(tokens))
	for i := range tokens {
		out = append(out, service.TokenToDTO(&tokens[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out})
}

type tokenRequest struct {
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ImageURL *string `json:"image_url"`
}

func validCoords(x, y float64) bool {
	return x >= 0 && x <= 100 && y >= 0 && y <= 100
}

// requireMaster 执行 HTTP 侧的 master 权限门。
func (h *Handler) requireMaster(c *gin.Context, gameID uuid.UUID, denied string) bool {
	isMaster, err := h.gameSvc.IsMaster(c.Request.Context(), gameID, auth.GetUserID(c))
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("master check")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authorize"})
		return false
	}
	if !isMaster {
		c.JSON(http.StatusForbidden, gin.H{"error": denied})
		return false
	}
	return true
}

// CreateToken 在棋盘上创建 token（仅 master）。
func (h *Handler) CreateToken(c *gin.Context) {
	gameID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if !validCoords(req.X, req.Y) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates must be between 0 and 100"})
		return
	}
	if !h.requireMaster(c, gameID, "Only master can create tokens") {
		return
	}
	token, err := h.gameSvc.CreateToken(c.Request.Context(), gameID, req.Name, req.X, req.Y, req.ImageURL)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("create token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	h.coord.NotifyTokensChanged(gameID, ws.TokenCreatedEvent{Type: "token:created", Token: service.TokenToDTO(token)})
	c.JSON(http.StatusCreated, service.TokenToDTO(token))
}

// UpdateToken 更新 token 位置（仅 master）。
func (h *Handler) UpdateToken(c *gin.Context) {
	gameID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	tokenID, err := uuid.Parse(c.Param("tokenID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token id"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if !validCoords(req.X, req.Y) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates must be between 0 and 100"})
		return
	}
	if !h.requireMaster(c, gameID, "Only master can move tokens") {
		return
	}
	token, err := h.gameSvc.UpdateTokenPosition(c.Request.Context(), tokenID, req.X, req.Y)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
			return
		}
		log.Error().Err(err).Str("token_id", tokenID.String()).Msg("update token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update token"})
		return
	}
	h.coord.NotifyTokensChanged(gameID, ws.TokenMovedEvent{
		Type:    "token:moved",
		TokenID: token.ID,
		X:       token.X,
		Y:       token.Y,
		MovedBy: auth.GetUserID(c),
	})
	c.JSON(http.StatusOK, service.TokenToDTO(token))
}

// DeleteToken 删除 token（仅 master）。
func (h *Handler) DeleteToken(c *gin.Context) {
	gameID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	tokenID, err := uuid.Parse(c.Param("tokenID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token id"})
		return
	}
	if !h.requireMaster(c, gameID, "Only master can delete tokens") {
		return
	}
	if err := h.gameSvc.DeleteToken(c.Request.Context(), tokenID); err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
			return
		}
		log.Error().Err(err).Str("token_id", tokenID.String()).Msg("delete token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete token"})
		return
	}
	h.coord.NotifyTokensChanged(gameID, ws.TokenDeletedEvent{Type: "token:deleted", TokenID: tokenID})
	c.Status(http.StatusNoContent)
}

// RollDice 处理 HTTP 掷骰请求。
func (h *Handler) RollDice(c *gin.Context) {
	// 缺省参数与 WebSocket 协议一致：一颗 d20。
	req := struct {
		Count int `json:"count"`
		Faces int `json:"faces"`
	}{Count: 1, Faces: 20}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := dice.Roll(req.Count, req.Faces)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateCharacter 创建角色卡。
func (h *Handler) CreateCharacter(c *gin.Context) {
	var req service.CharacterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ch, err := h.charSvc.Create(auth.GetUserID(c), req)
	if err != nil {
		log.Error().Err(err).Msg("create character")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create character"})
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// ListCharacters 返回当前用户的全部角色卡。
func (h *Handler) ListCharacters(c *gin.Context) {
	chars, err := h.charSvc.ListByUser(auth.GetUserID(c))
	if err != nil {
		log.Error().Err(err).Msg("list characters")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list characters"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"characters": chars})
}

func (h *Handler) characterID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid character id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) characterError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrCharacterNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "you don't have access to this character"})
	default:
		log.Error().Err(err).Msg(op)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "character operation failed"})
	}
}

// GetCharacter 返回指定角色卡（仅所有者）。
func (h *Handler) GetCharacter(c *gin.Context) {
	id, ok := h.characterID(c)
	if !ok {
		return
	}
	ch, err := h.charSvc.ByID(id, auth.GetUserID(c))
	if err != nil {
		h.characterError(c, err, "get character")
		return
	}
	c.JSON(http.StatusOK, ch)
}

// UpdateCharacter 更新角色卡（仅所有者）。
func (h *Handler) UpdateCharacter(c *gin.Context) {
	id, ok := h.characterID(c)
	if !ok {
		return
	}
	var req service.CharacterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ch, err := h.charSvc.Update(id, auth.GetUserID(c), req)
	if err != nil {
		h.characterError(c, err, "update character")
		return
	}
	c.JSON(http.StatusOK, ch)
}

// DeleteCharacter 删除角色卡（仅所有者）。
func (h *Handler) DeleteCharacter(c *gin.Context) {
	id, ok := h.characterID(c)
	if !ok {
		return
	}
	if err := h.charSvc.Delete(id, auth.GetUserID(c)); err != nil {
		h.characterError(c, err, "delete character")
		return
	}
	c.Status(http.StatusNoContent)
}
