package llm

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// AudioInput attaches audio to a multimodal completion request.
type AudioInput struct {
	// MIME is the audio MIME type.
	MIME string `json:"mime"`
	// Data is the raw audio payload.
	Data []byte `json:"-"`
}

// CompletionRequest is the universal input for LLM completion calls.
type CompletionRequest struct {
	// Model overrides the client's default model.
	Model string `json:"model,omitempty"`
	// Messages is the conversation history.
	Messages []Message `json:"messages"`
	// SystemPrompt is prepended as a system message.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64 `json:"temperature,omitempty"`
	// MaxTokens limits the response length. 0 means provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Audio, when set, is supplied alongside the messages so the model can
	// ground its answer in what is actually said. Only multimodal clients
	// accept it.
	Audio *AudioInput `json:"-"`
	// JSONResponse asks the model to emit a bare JSON document.
	JSONResponse bool `json:"json_response,omitempty"`
}

// CompletionResponse is the universal output from LLM completion calls.
type CompletionResponse struct {
	// Content is the generated text.
	Content string `json:"content"`
	// Model is the model that produced the response.
	Model string `json:"model"`
	// Usage reports token consumption.
	Usage Usage `json:"usage"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
