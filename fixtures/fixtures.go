package fixtures

import (
	_ "embed"
)

//go:embed config/gemmbench.yaml.template
var ConfigTemplate []byte
