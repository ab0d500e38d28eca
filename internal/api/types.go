package api

import (
	"bytes"
	"encoding/json"
)

// UserID accepts both string and numeric ids
type UserID string

func (id *UserID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = UserID(n.String())
	return nil
}

type User struct {
	ID            UserID `json:"id"`
	WalletAddress string `json:"walletAddress"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type RegisterRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
	Seed          string `json:"seed"` // base64 of the encrypted vault record
	Password      string `json:"password"`
}

type LoginRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
	Password      string `json:"password"`
}

// ImportRequest signs in a restored wallet by signature alone
type ImportRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
}

type checkRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
