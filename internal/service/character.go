package service

import (
	"errors"

	"github.com/Mikhail-2byte/Dnd-version2/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CharacterService 封装角色卡的业务逻辑，所有操作都限定在所有者范围内。
type CharacterService struct {
	db *gorm.DB
}

func NewCharacterService(db *gorm.DB) *CharacterService {
	return &CharacterService{db: db}
}

// CharacterInput 是创建/更新角色卡的入参。
type CharacterInput struct {
	Name                 string  `json:"name" binding:"required"`
	Race                 string  `json:"race" binding:"required"`
	Class                string  `json:"class" binding:"required"`
	Level                int     `json:"level"`
	Strength             int     `json:"strength"`
	Dexterity            int     `json:"dexterity"`
	Constitution         int     `json:"constitution"`
	Intelligence         int     `json:"intelligence"`
	Wisdom               int     `json:"wisdom"`
	Charisma             int     `json:"charisma"`
	CharacterHistory     *string `json:"character_history"`
	EquipmentAndFeatures *string `json:"equipment_and_features"`
	AvatarURL            *string `json:"avatar_url"`
}

func (in *CharacterInput) applyDefaults() {
	if in.Level <= 0 {
		in.Level = 1
	}
	for _, score := range []*int{&in.Strength, &in.Dexterity, &in.Constitution, &in.Intelligence, &in.Wisdom, &in.Charisma} {
		if *score <= 0 {
			*score = 10
		}
	}
}

// Create 为用户创建新角色卡。
func (s *CharacterService) Create(userID uuid.UUID, in CharacterInput) (*models.Character, error) {
	in.applyDefaults()
	ch := models.Character{
		ID:                   uuid.New(),
		UserID:               userID,
		Name:                 in.Name,
		Race:                 in.Race,
		Class:                in.Class,
		Level:                in.Level,
		Strength:             in.Strength,
		Dexterity:            in.Dexterity,
		Constitution:         in.Constitution,
		Intelligence:         in.Intelligence,
		Wisdom:               in.Wisdom,
		Charisma:             in.Charisma,
		CharacterHistory:     in.CharacterHistory,
		EquipmentAndFeatures: in.EquipmentAndFeatures,
		AvatarURL:            in.AvatarURL,
	}
	if err := s.db.Create(&ch).Error; err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListByUser 返回用户的全部角色卡。
func (s *CharacterService) ListByUser(userID uuid.UUID) ([]models.Character, error) {
	var chars []models.Character
	if err := s.db.Where("user_id = ?", userID).Order("created_at").Find(&chars).Error; err != nil {
		return nil, err
	}
	return chars, nil
}

// ByID 返回指定角色卡，userID 不是所有者时返回 ErrNotOwner。
func (s *CharacterService) ByID(charID, userID uuid.UUID) (*models.Character, error) {
	var ch models.Character
	if err := s.db.First(&ch, "id = ?", charID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	if ch.UserID != userID {
		return nil, ErrNotOwner
	}
	return &ch, nil
}

// Update 更新角色卡。
func (s *CharacterService) Update(charID, userID uuid.UUID, in CharacterInput) (*models.Character, error) {
	ch, err := s.ByID(charID, userID)
	if err != nil {
		return nil, err
	}
	in.applyDefaults()
	ch.Name = in.Name
	ch.Race = in.Race
	ch.Class = in.Class
	ch.Level = in.Level
	ch.Strength = in.Strength
	ch.Dexterity = in.Dexterity
	ch.Constitution = in.Constitution
	ch.Intelligence = in.Intelligence
	ch.Wisdom = in.Wisdom
	ch.Charisma = in.Charisma
	ch.CharacterHistory = in.CharacterHistory
	ch.EquipmentAndFeatures = in.EquipmentAndFeatures
	ch.AvatarURL = in.AvatarURL
	if err := s.db.Save(ch).Error; err != nil {
		return nil, err
	}
	return ch, nil
}

// Delete 删除角色卡。
func (s *CharacterService) Delete(charID, userID uuid.UUID) error {
	ch, err := s.ByID(charID, userID)
	if err != nil {
		return err
	}
	return s.db.Delete(ch).Error
}
