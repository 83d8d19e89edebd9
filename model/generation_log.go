package model

import (
	"context"
	"time"

	"github.com/ezlinkai/ai-image-generator/common"
	"github.com/ezlinkai/ai-image-generator/common/config"
	"github.com/ezlinkai/ai-image-generator/common/helper"
	"github.com/ezlinkai/ai-image-generator/common/logger"
	"gorm.io/gorm"
)

// GenerationLog is one generation attempt. Prompt text and image bytes are never stored.
type GenerationLog struct {
	Id             int     `json:"id"`
	RequestId      string  `json:"request_id" gorm:"index;default:''"`
	SessionId      string  `json:"session_id" gorm:"index;default:''"`
	CreatedAt      int64   `json:"created_at" gorm:"bigint;index"`
	ModelName      string  `json:"model_name" gorm:"index;default:''"`
	PromptLength   int     `json:"prompt_length" gorm:"default:0"`
	CountRequested int     `json:"count_requested" gorm:"default:0"`
	ImagesReturned int     `json:"images_returned" gorm:"default:0"`
	ErrorKind      string  `json:"error_kind" gorm:"index;default:''"`
	StatusCode     int     `json:"status_code" gorm:"default:0"`
	Duration       float64 `json:"duration" gorm:"default:0"` // unit: second
}

func (l *GenerationLog) Success() bool {
	return l.ErrorKind == ""
}

func (l *GenerationLog) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt == 0 {
		l.CreatedAt = helper.GetTimestamp()
	}
	return nil
}

func RecordGenerationLog(ctx context.Context, log *GenerationLog) {
	if !config.GenerationLogEnabled || LOG_DB == nil {
		return
	}
	if err := LOG_DB.Create(log).Error; err != nil {
		logger.Error(ctx, "failed to record generation log: "+err.Error())
	}
}

// RecordGenerationLogAsync writes the log on the relay pool so the response is not delayed.
func RecordGenerationLogAsync(ctx context.Context, log *GenerationLog) {
	ctx = context.WithoutCancel(ctx)
	common.RelayCtxGo(ctx, func() {
		RecordGenerationLog(ctx, log)
	})
}

func NewGenerationLog(requestId string, sessionId string, modelName string, prompt string, count int, duration time.Duration) *GenerationLog {
	return &GenerationLog{
		RequestId:      requestId,
		SessionId:      sessionId,
		ModelName:      modelName,
		PromptLength:   len([]rune(prompt)),
		CountRequested: count,
		Duration:       duration.Seconds(),
	}
}

func GetGenerationLogs(sessionId string, errorKind string, startIdx int, num int) (logs []*GenerationLog, total int64, err error) {
	tx := LOG_DB.Model(&GenerationLog{})
	if sessionId != "" {
		tx = tx.Where("session_id = ?", sessionId)
	}
	if errorKind != "" {
		tx = tx.Where("error_kind = ?", errorKind)
	}
	if err = tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err = tx.Order("id desc").Limit(num).Offset(startIdx).Find(&logs).Error
	return logs, total, err
}
