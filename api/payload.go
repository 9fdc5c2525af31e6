package api

import (
	"github.com/gin-gonic/gin"
	"github.com/go-viper/mapstructure/v2"

	"github.com/xraph/tally"
	"github.com/xraph/tally/sanitize"
)

// decode binds the JSON body into out. The raw document is sanitized first,
// then every numeric field is coerced through the sanitizer, so a malformed
// amount becomes zero instead of reaching a write.
func decode(c *gin.Context, out any) error {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		return tally.ValidationError{Field: "body", Message: "request body must be a JSON object"}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			sanitize.DecodeHook(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		Result: out,
	})
	if err != nil {
		return err
	}

	if err := dec.Decode(sanitize.Value(raw)); err != nil {
		return tally.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}
