package webapp

import (
	_ "embed"
)

// Stylesheet is webapp.css, served at /webapp/webapp.css by both UI servers
//
//go:embed webapp.css
var Stylesheet []byte
