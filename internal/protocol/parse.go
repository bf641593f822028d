// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"fmt"
)

// Parse decodes a server message. Unknown message names parse fine and
// are left for the consumer to skip; only malformed JSON or a missing
// message name is an error.
func Parse(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal server message: %w", err)
	}
	if msg.Message == "" {
		return nil, fmt.Errorf("server message without message name")
	}
	return &msg, nil
}
