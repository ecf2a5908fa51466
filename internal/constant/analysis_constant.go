package constant

import "ai-docinsight-be/pkg/llm"

// DefaultSystemTemplate is the prompt template every new session starts from.
const DefaultSystemTemplate = `<task>
You are a financial document analyst. Answer the user's question using only
the supplied document context.
</task>

<document_context>
{{retrieved_context}}
</document_context>

<user_question>
{{user_text}}
</user_question>

Base your answer strictly on the document context. If the context does not
contain what is being asked, say so honestly.`

// Outbound websocket event names.
const (
	EventSystemPromptUpdate  = "system_prompt_update"
	EventDocumentStatsUpdate = "document_stats_update"
	EventAnalysisResult      = "analysis_result"
	EventAnalysisError       = "analysis_error"
	EventSystemAnnouncement  = "system_announcement"
)

// Inbound websocket event names.
const (
	EventUpdateUserText       = "update_user_text"
	EventUploadDocument       = "upload_document"
	EventRequestAnalysis      = "request_analysis"
	EventUpdateSystemTemplate = "update_system_template"
)

// UserMessageForCategory maps provider error categories onto user-facing
// guidance. Unknown categories get a generic retry message.
func UserMessageForCategory(category llm.ErrorCategory) string {
	switch category {
	case llm.ErrorRateLimit:
		return "The AI service is receiving too many requests. Please wait a moment and try again."
	case llm.ErrorAuth:
		return "The AI service rejected the configured credentials. Please check the API key configuration."
	case llm.ErrorQuota:
		return "The AI service usage quota has been exhausted. Please review your plan or usage limits."
	default:
		return "The AI service returned an unexpected error. Please try again."
	}
}
