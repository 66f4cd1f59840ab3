// internal/websocket/utils.go
package websocket

import (
	"encoding/json"
	"fmt"
)

// mapToStruct converts interface{} to a specific struct using JSON marshaling
func mapToStruct(data interface{}, target interface{}) error {
	if data == nil {
		return fmt.Errorf("message carries no data")
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}

// DecodeData decodes a client message's data into target.
func DecodeData(data interface{}, target interface{}) error {
	return mapToStruct(data, target)
}
