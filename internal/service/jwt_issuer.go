package service

import (
	"time"

	"magiclink/internal/entity"
	"magiclink/internal/utils"

	"github.com/google/uuid"
)

type JWTAccessIssuer struct {
	Manager *utils.JWTManager
}

func (j JWTAccessIssuer) IssueAccessToken(user entity.User, sessionID uuid.UUID) (string, time.Duration, error) {
	if j.Manager == nil {
		return "", 0, utils.ErrInvalidToken
	}
	sid := ""
	if sessionID != uuid.Nil {
		sid = sessionID.String()
	}
	return j.Manager.IssueAccessToken(user.ID.String(), string(user.Role), sid)
}
