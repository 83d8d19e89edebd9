package controller

import (
	"fmt"

	"github.com/ezlinkai/ai-image-generator/common/logger"
	"github.com/ezlinkai/ai-image-generator/service"
	"github.com/jinzhu/copier"
)

type GenerateRequest struct {
	Prompt string `json:"prompt" form:"prompt"`
	// 0 keeps the session's current choice; range checks happen in the shell
	Count int `json:"count" form:"count"`
}

type GenerationLogQuery struct {
	Page      int    `form:"page" binding:"gte=0"`
	PageSize  int    `form:"pagesize" binding:"gte=0,lte=100"`
	ErrorKind string `form:"error_kind" binding:"omitempty,oneof=configuration_error auth_error upstream_error empty_result_error unknown_error"`
}

type ImageView struct {
	Index        int    `json:"index"`
	Src          string `json:"src"`
	SourcePrompt string `json:"source_prompt"`
	DownloadURL  string `json:"download_url"`
}

type ShellView struct {
	Prompt         string      `json:"prompt"`
	Count          int         `json:"count"`
	Loading        bool        `json:"loading"`
	Error          string      `json:"error"`
	ErrorKind      string      `json:"error_kind"`
	HasCredential  bool        `json:"has_credential"`
	ShowPromo      bool        `json:"show_promo"`
	BatchTimestamp int64       `json:"batch_timestamp"`
	UpdatedAt      int64       `json:"updated_at"`
	Images         []ImageView `json:"images" copier:"-"`
}

func newShellView(state service.ShellState) ShellView {
	var view ShellView
	if err := copier.Copy(&view, &state); err != nil {
		logger.SysError("failed to copy shell state: " + err.Error())
	}
	view.Images = make([]ImageView, 0, len(state.Images))
	for i, img := range state.Images {
		view.Images = append(view.Images, ImageView{
			Index:        i,
			Src:          img.Src(),
			SourcePrompt: img.SourcePrompt,
			DownloadURL:  fmt.Sprintf("/api/images/%d/download", i),
		})
	}
	return view
}
