package dragonscale

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/pretty"
)

// prettyOptions lays out every array element on its own line.
var prettyOptions = &pretty.Options{Width: 0, Indent: "  "}

// renderPayload turns a retrieved payload into readable text: indented JSON
// when the payload encodes, its default string form otherwise.
func renderPayload(payload any) string {
	var raw []byte
	switch v := payload.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	}
	if raw != nil {
		if json.Valid(raw) {
			return prettyJSON(raw)
		}
		return string(raw)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return fmt.Sprint(payload)
	}
	return prettyJSON(buf.Bytes())
}

func prettyJSON(raw []byte) string {
	return string(bytes.TrimRight(pretty.PrettyOptions(raw, prettyOptions), "\n"))
}
