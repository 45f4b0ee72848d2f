// Package all registers every built-in format handler. Import it for
// side effects wherever the full registry is needed.
package all

import (
	// Each handler registers itself during init.
	_ "github.com/polyform-dev/polyform/internal/formats/json"
	_ "github.com/polyform-dev/polyform/internal/formats/toml"
	_ "github.com/polyform-dev/polyform/internal/formats/xml"
	_ "github.com/polyform-dev/polyform/internal/formats/yaml"
)
