package models

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type LoginInput struct {
	InitData string `json:"initData"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	User Identity `json:"user"`
	TokenPair
}
