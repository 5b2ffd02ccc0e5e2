//go:build js && wasm
// +build js,wasm

package main

import (
	"github.com/drummonds/pdfembed/webapp"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

func main() {
	// Every route renders the App shell, which picks the page from the URL
	for _, path := range webapp.Routes {
		app.Route(path, func() app.Composer { return &webapp.App{} })
	}

	// This main function is for the WASM build only
	// It initializes the go-app when running in the browser
	app.RunWhenOnBrowser()
}
