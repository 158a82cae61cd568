package handler

import (
	"fmt"

	"ahsan-gpt-go/internal/config"
	"ahsan-gpt-go/internal/model"

	"github.com/dustin/go-humanize"
)

// MessageRequest 是发送消息的请求体，HTTP 与 WebSocket 共用。
type MessageRequest struct {
	Content     string          `json:"content"`
	Attachments []model.FileRef `json:"attachments"`
}

// ValidationError 是可以直接展示给用户的请求校验错误。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// validateMessage 在消息进入会话核心之前校验长度和附件元数据。
func validateMessage(req MessageRequest, cfg config.UploadConfig) error {
	maxChars := cfg.MaxContentChars
	if maxChars <= 0 {
		maxChars = model.MaxContentChars
	}
	if len([]rune(req.Content)) > maxChars {
		return &ValidationError{Message: fmt.Sprintf("Message too long. Maximum %s characters.", humanize.Comma(int64(maxChars)))}
	}

	maxFiles := cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = 5
	}
	if len(req.Attachments) > maxFiles {
		return &ValidationError{Message: fmt.Sprintf("Maximum %d files allowed", maxFiles)}
	}

	maxMB := cfg.MaxFileSizeMB
	if maxMB <= 0 {
		maxMB = 10
	}
	allowed := cfg.AllowedTypes
	if len(allowed) == 0 {
		allowed = config.DefaultAllowedTypes
	}
	for _, f := range req.Attachments {
		if f.SizeBytes > uint64(maxMB)*1024*1024 {
			return &ValidationError{Message: fmt.Sprintf("%s exceeds %dMB limit", f.Name, maxMB)}
		}
		if !contains(allowed, f.MimeType) {
			return &ValidationError{Message: fmt.Sprintf("%s has unsupported file type", f.Name)}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
