package dto

type NewChatRequest struct {
	Message string `json:"message" validate:"required,notblank" msg:"Message is required"`
}

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type NewChatResponse struct {
	Message          string   `json:"message"`
	AssistantMessage ChatTurn `json:"assistantMessage"`
}

type AllChatsResponse struct {
	Message string     `json:"message"`
	Chats   []ChatTurn `json:"chats"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ValidationError struct {
	Msg      string `json:"msg"`
	Path     string `json:"path"`
	Location string `json:"location"`
}

type ValidationErrorResponse struct {
	Errors []ValidationError `json:"errors"`
}
