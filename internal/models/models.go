package models

import (
	"time"

	"github.com/google/uuid"
)

// 参与者角色：每局游戏在创建时固定一名 master，其余加入者均为 player。
const (
	RoleMaster = "master"
	RolePlayer = "player"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"uniqueIndex;size:255;not null"`
	Username     string    `gorm:"size:100;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	CreatedAt    time.Time
}

type GameSession struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"size:255;not null"`
	InviteCode string    `gorm:"uniqueIndex;size:6;not null"`
	MasterID   uuid.UUID `gorm:"type:uuid;not null"`
	MapURL     *string   `gorm:"size:500"`
	Story      *string   `gorm:"type:text"`
	CreatedAt  time.Time
}

type GameParticipant struct {
	GameID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role     string    `gorm:"size:20;not null;default:player"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

type Token struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	GameID      uuid.UUID  `gorm:"type:uuid;index;not null"`
	Name        string     `gorm:"size:255;not null"`
	X           float64    `gorm:"not null"` // 棋盘横向位置，百分比 0-100
	Y           float64    `gorm:"not null"` // 棋盘纵向位置，百分比 0-100
	ImageURL    *string    `gorm:"size:500"`
	CharacterID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time
}

type Character struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID               uuid.UUID `gorm:"type:uuid;index;not null"`
	Name                 string    `gorm:"size:255;index;not null"`
	Race                 string    `gorm:"size:100;not null"`
	Class                string    `gorm:"column:class;size:100;not null"`
	Level                int       `gorm:"not null;default:1"`
	Strength             int       `gorm:"not null;default:10"`
	Dexterity            int       `gorm:"not null;default:10"`
	Constitution         int       `gorm:"not null;default:10"`
	Intelligence         int       `gorm:"not null;default:10"`
	Wisdom               int       `gorm:"not null;default:10"`
	Charisma             int       `gorm:"not null;default:10"`
	CharacterHistory     *string   `gorm:"type:text"`
	EquipmentAndFeatures *string   `gorm:"type:text"`
	AvatarURL            *string   `gorm:"size:500"`
	CreatedAt            time.Time
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
