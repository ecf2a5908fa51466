package dto

type AnalyzeRequest struct {
	UserId    string `json:"user_id" validate:"required"`
	SessionId string `json:"session_id" validate:"required"`
	Query     string `json:"query" validate:"required"`
}

type AnalyzeResponse struct {
	SessionId  string `json:"session_id"`
	Prompt     string `json:"prompt"`
	Analysis   string `json:"analysis"`
	FromCache  bool   `json:"from_cache"`
	Stale      bool   `json:"stale,omitempty"`
	Remaining  int    `json:"remaining"`
	ChunkCount int    `json:"chunk_count"`
}

type UpdateTemplateRequest struct {
	SessionId string `json:"session_id" validate:"required"`
	Template  string `json:"template" validate:"required"`
}

type AnnounceRequest struct {
	Message string `json:"message" validate:"required"`
}
