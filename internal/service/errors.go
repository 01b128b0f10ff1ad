package service

import "errors"

// 业务层通用错误，handler 与 ws 协调器根据错误类型映射到
// 合适的 HTTP 状态码或单播 error 事件。
var (
	ErrEmailTaken         = errors.New("email taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrGameNotFound       = errors.New("game not found")
	ErrNotParticipant     = errors.New("not a participant")
	ErrTokenNotFound      = errors.New("token not found")
	ErrCharacterNotFound  = errors.New("character not found")
	ErrNotOwner           = errors.New("not the owner")
)
