package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
	jwt.RegisteredClaims
}

type ApiKeyCreation struct {
	KeyName string `json:"key_name" validate:"required,max=100"`
}
