package model

type ImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
}

type ImageData struct {
	B64Json string `json:"b64_json,omitempty"`
}

type ImageResponse struct {
	Created int         `json:"created,omitempty"`
	Data    []ImageData `json:"data,omitempty"`
	// some proxies answer 200 with an error body
	Error *Error `json:"error,omitempty"`
}
