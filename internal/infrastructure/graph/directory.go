// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package graph

import (
	"context"
	"net/http"
	"net/url"
	"slices"
)

const odataTypeUser = "#microsoft.graph.user"

type directoryObject struct {
	ODataType string `json:"@odata.type"`
	ID        string `json:"id"`
}

// IsUserInGroup reports whether the user is a transitive member of the group.
func (c *Client) IsUserInGroup(ctx context.Context, userID, groupID string) (bool, error) {
	var result struct {
		Value []string `json:"value"`
	}
	err := c.doJSON(ctx, request{
		method: http.MethodPost,
		target: userPath(userID) + "/checkMemberGroups",
		body:   map[string][]string{"groupIds": {groupID}},
	}, &result)
	if err != nil {
		return false, err
	}
	return slices.Contains(result.Value, groupID), nil
}

// ListGroupMembers returns the ids of the users in a group. Nested groups,
// devices and service principals are left out.
func (c *Client) ListGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	target := "/groups/" + url.PathEscape(groupID) + "/members?" +
		url.Values{"$select": {"id"}}.Encode()

	members, err := getAll[directoryObject](ctx, c, target)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.ODataType == odataTypeUser && m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}
