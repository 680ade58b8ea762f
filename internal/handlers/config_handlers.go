// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/constants"
)

//go:embed config_page.md
var configPageSource string

var configPageLayout = template.Must(template.New("config").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// ConfigPageHandler serves the static configuration page shown when the app
// is added to a meeting.
type ConfigPageHandler struct {
	page []byte
}

// NewConfigPageHandler renders the page once for botName.
func NewConfigPageHandler(botName string) (*ConfigPageHandler, error) {
	if strings.TrimSpace(botName) == "" {
		botName = constants.DefaultBotName
	}

	var source bytes.Buffer
	src := texttemplate.Must(texttemplate.New("source").Parse(configPageSource))
	if err := src.Execute(&source, struct{ BotName string }{BotName: template.HTMLEscapeString(botName)}); err != nil {
		return nil, fmt.Errorf("failed to fill config page: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert(source.Bytes(), &body); err != nil {
		return nil, fmt.Errorf("failed to render config page: %w", err)
	}

	var page bytes.Buffer
	err := configPageLayout.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{
		Title: botName,
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render config page layout: %w", err)
	}

	return &ConfigPageHandler{page: page.Bytes()}, nil
}

func (h *ConfigPageHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeHTML)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.page)
}
