// Package protocol defines the API request/response types.
package protocol

import "time"

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// MessageResponse acknowledges a mutation that returns no entity.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// CreateRequest is the body for POST /api/files/folder and /api/files/file
type CreateRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// RenameRequest is the body for POST /api/files/rename. Both names are paths
// relative to the active zone root.
type RenameRequest struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

// DeleteResponse is returned by DELETE /api/files/{path}
type DeleteResponse struct {
	Success            bool   `json:"success"`
	WasDirectory       bool   `json:"wasDirectory"`
	ShouldNavigateHome bool   `json:"shouldNavigateHome"`
	TrashName          string `json:"trashName"`
}

// BulkResponse reports a best-effort operation over many entries.
type BulkResponse struct {
	Success bool          `json:"success"`
	Moved   []string      `json:"moved"`
	Failed  []BulkFailure `json:"failed,omitempty"`
}

// BulkFailure is one entry a bulk operation could not process.
type BulkFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// MoveResponse is returned by restore and archive operations.
type MoveResponse struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
	Path    string `json:"path"`
}

// ContentBody is returned by GET /api/files/content and accepted by PUT.
type ContentBody struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// StorageSettings is the body for GET/POST /api/settings/storage
type StorageSettings struct {
	StorageLimit  int64 `json:"storageLimit"`
	FileSizeLimit int64 `json:"fileSizeLimit"`
}

// VaultStatusResponse is returned by GET /api/vault/status
type VaultStatusResponse struct {
	Configured bool `json:"configured"`
}

// VaultPasswordRequest is the body for POST /api/vault/password
type VaultPasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// VaultAuthRequest is the body for POST /api/vault/auth
type VaultAuthRequest struct {
	Password string `json:"password"`
}

// VaultAuthResponse carries a vault access token.
type VaultAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ArchiveRequest is the body for POST /api/vault/archive
type ArchiveRequest struct {
	Path string `json:"path"`
}
