package service

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/Mikhail-2byte/Dnd-version2/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GameService 封装游戏会话、参与者与棋盘 token 的业务逻辑，
// 是 ws 协调器眼中的持久化存储。
type GameService struct {
	db *gorm.DB
}

func NewGameService(db *gorm.DB) *GameService {
	return &GameService{db: db}
}

// GameDTO 是对外输出的游戏数据。
type GameDTO struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	InviteCode string    `json:"invite_code"`
	MapURL     *string   `json:"map_url"`
}

// TokenDTO 是对外输出的棋盘 token 数据。
type TokenDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	ImageURL *string   `json:"image_url"`
}

// PlayerDTO 是房间花名册中的一名参与者。
type PlayerDTO struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

func GameToDTO(g *models.GameSession) GameDTO {
	return GameDTO{ID: g.ID, Name: g.Name, InviteCode: g.InviteCode, MapURL: g.MapURL}
}

func TokenToDTO(t *models.Token) TokenDTO {
	return TokenDTO{ID: t.ID, Name: t.Name, X: t.X, Y: t.Y, ImageURL: t.ImageURL}
}

const inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateInviteCode 生成 6 位大写字母数字邀请码。
func GenerateInviteCode() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = inviteCodeAlphabet[rand.IntN(len(inviteCodeAlphabet))]
	}
	return string(b)
}

// CreateGame 创建新游戏会话：邀请码撞库重试，游戏与 master 参与者
// 在同一事务里落库。
func (s *GameService) CreateGame(ctx context.Context, name string, masterID uuid.UUID) (*models.GameSession, error) {
	db := s.db.WithContext(ctx)

	code := GenerateInviteCode()
	for {
		var count int64
		if err := db.Model(&models.GameSession{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			break
		}
		code = GenerateInviteCode()
	}

	game := models.GameSession{ID: uuid.New(), Name: name, InviteCode: code, MasterID: masterID}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&game).Error; err != nil {
			return err
		}
		participant := models.GameParticipant{GameID: game.ID, UserID: masterID, Role: models.RoleMaster}
		return tx.Create(&participant).Error
	})
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *GameService) GameByID(ctx context.Context, gameID uuid.UUID) (*models.GameSession, error) {
	var game models.GameSession
	if err := s.db.WithContext(ctx).First(&game, "id = ?", gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (s *GameService) GameByInviteCode(ctx context.Context, code string) (*models.GameSession, error) {
	var game models.GameSession
	if err := s.db.WithContext(ctx).First(&game, "invite_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

// JoinGame 以 player 身份加入游戏。重复加入是幂等空操作。
func (s *GameService) JoinGame(ctx context.Context, gameID, userID uuid.UUID) (*models.GameSession, error) {
	game, err := s.GameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var existing models.GameParticipant
	err = db.Where("game_id = ? AND user_id = ?", gameID, userID).First(&existing).Error
	if err == nil {
		return game, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	participant := models.GameParticipant{GameID: gameID, UserID: userID, Role: models.RolePlayer}
	if err := db.Create(&participant).Error; err != nil {
		return nil, err
	}
	return game, nil
}

// Participant 查询 (game, user) 的参与记录，不存在时返回 ErrNotParticipant。
func (s *GameService) Participant(ctx context.Context, gameID, userID uuid.UUID) (*models.GameParticipant, error) {
	var p models.GameParticipant
	err := s.db.WithContext(ctx).Where("game_id = ? AND user_id = ?", gameID, userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}
	return &p, nil
}

// IsMaster 检查用户是否是该游戏的 master。
func (s *GameService) IsMaster(ctx context.Context, gameID, userID uuid.UUID) (bool, error) {
	p, err := s.Participant(ctx, gameID, userID)
	if err != nil {
		if errors.Is(err, ErrNotParticipant) {
			return false, nil
		}
		return false, err
	}
	return p.Role == models.RoleMaster, nil
}

// Players 返回房间花名册（带用户名），用于加入时的状态快照。
func (s *GameService) Players(ctx context.Context, gameID uuid.UUID) ([]PlayerDTO, error) {
	db := s.db.WithContext(ctx)
	var participants []models.GameParticipant
	if err := db.Where("game_id = ?", gameID).Find(&participants).Error; err != nil {
		return nil, err
	}
	userIDs := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		userIDs = append(userIDs, p.UserID)
	}
	usernames := make(map[uuid.UUID]string, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		if err := db.Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			usernames[u.ID] = u.Username
		}
	}
	out := make([]PlayerDTO, 0, len(participants))
	for _, p := range participants {
		out = append(out, PlayerDTO{UserID: p.UserID, Username: usernames[p.UserID], Role: p.Role})
	}
	return out, nil
}

func (s *GameService) UserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateToken 在棋盘上创建一个 token。
func (s *GameService) CreateToken(ctx context.Context, gameID uuid.UUID, name string, x, y float64, imageURL *string) (*models.Token, error) {
	token := models.Token{ID: uuid.New(), GameID: gameID, Name: name, X: x, Y: y, ImageURL: imageURL}
	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// UpdateTokenPosition 更新 token 的棋盘位置。
func (s *GameService) UpdateTokenPosition(ctx context.Context, tokenID uuid.UUID, x, y float64) (*models.Token, error) {
	db := s.db.WithContext(ctx)
	var token models.Token
	if err := db.First(&token, "id = ?", tokenID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if err := db.Model(&token).Updates(map[string]interface{}{"x": x, "y": y}).Error; err != nil {
		return nil, err
	}
	token.X = x
	token.Y = y
	return &token, nil
}

// DeleteToken 删除 token。
func (s *GameService) DeleteToken(ctx context.Context, tokenID uuid.UUID) error {
	db := s.db.WithContext(ctx)
	var token models.Token
	if err := db.First(&token, "id = ?", tokenID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	return db.Delete(&token).Error
}

// TokensByGame 返回一局游戏的全部 token。
func (s *GameService) TokensByGame(ctx context.Context, gameID uuid.UUID) ([]models.Token, error) {
	var tokens []models.Token
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}
