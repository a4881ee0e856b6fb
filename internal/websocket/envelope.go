package websocket

import (
	"encoding/json"

	"chatedge-be/internal/dto"
)

// decodePayload accepts a missing data field as the zero payload.
func decodePayload(env dto.Envelope, out interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
