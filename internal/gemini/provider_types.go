package gemini

const (
	stateProcessing = "PROCESSING"
	stateActive     = "ACTIVE"
	stateFailed     = "FAILED"
)

// Upload session start body.
type providerUploadStart struct {
	File providerFileMeta `json:"file"`
}

type providerFileMeta struct {
	DisplayName string `json:"display_name,omitempty"`
}

// File resource as returned by files.get and inside the upload response.
type providerFile struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	MimeType    string `json:"mimeType"`
	SizeBytes   string `json:"sizeBytes,omitempty"`
	URI         string `json:"uri"`
	State       string `json:"state"`
	Error       *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type providerUploadResponse struct {
	File providerFile `json:"file"`
}

type providerGenerateRequest struct {
	Contents         []providerContent        `json:"contents"`
	GenerationConfig providerGenerationConfig `json:"generationConfig"`
}

type providerContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []providerPart `json:"parts"`
}

type providerPart struct {
	Text     string            `json:"text,omitempty"`
	FileData *providerFileData `json:"fileData,omitempty"`
}

type providerFileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type providerGenerationConfig struct {
	ResponseMimeType   string         `json:"responseMimeType"`
	ResponseJSONSchema map[string]any `json:"responseJsonSchema"`
}

type providerGenerateResponse struct {
	Candidates []struct {
		Content      providerContent `json:"content"`
		FinishReason string          `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

type providerErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
