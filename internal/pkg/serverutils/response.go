package serverutils

// SuccessResponse is the uniform envelope for successful JSON responses.
func SuccessResponse(message string, data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	}
}
