package consolidation

import "encoding/json"

func marshalContent(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
