// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package graph

import (
	"context"
	"net/http"
	"net/url"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
)

type teamsAppInstallation struct {
	ID       string `json:"id"`
	TeamsApp struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"teamsApp"`
}

func chatAppsPath(chatID string) string {
	return "/chats/" + url.PathEscape(chatID) + "/installedApps"
}

// ListInstalledApps returns the apps installed in a chat.
func (c *Client) ListInstalledApps(ctx context.Context, chatID string) ([]models.InstalledApp, error) {
	items, err := getAll[teamsAppInstallation](ctx, c,
		chatAppsPath(chatID)+"?"+url.Values{"$expand": {"teamsApp"}}.Encode())
	if err != nil {
		return nil, err
	}

	apps := make([]models.InstalledApp, 0, len(items))
	for _, item := range items {
		apps = append(apps, models.InstalledApp{
			ID:          item.ID,
			TeamsAppID:  item.TeamsApp.ID,
			DisplayName: item.TeamsApp.DisplayName,
		})
	}
	return apps, nil
}

// InstallApp installs a catalog app into a chat. An existing installation is
// reported by Graph as a conflict.
func (c *Client) InstallApp(ctx context.Context, chatID, catalogAppID string) error {
	if chatID == "" || catalogAppID == "" {
		return domain.NewValidationError("chat id and catalog app id are required")
	}
	return c.doJSON(ctx, request{
		method: http.MethodPost,
		target: chatAppsPath(chatID),
		body: map[string]string{
			"teamsApp@odata.bind": BaseURL + "/appCatalogs/teamsApps/" + url.PathEscape(catalogAppID),
		},
	}, nil)
}
