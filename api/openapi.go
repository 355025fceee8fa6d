package api

import (
	_ "embed"
)

//go:embed openapi/rideshare.swagger.json
var OpenAPISpec []byte
