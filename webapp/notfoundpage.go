package webapp

import (
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// NotFoundPage displays a 404 error message
type NotFoundPage struct {
	app.Compo
}

// Render renders the 404 page
func (p *NotFoundPage) Render() app.UI {
	return app.Div().
		Class("not-found-page").
		Body(
			app.H1().Class("not-found-title").Text("404"),
			app.H2().Class("not-found-subtitle").Text("Page Not Found"),
			app.P().
				Class("not-found-message").
				Text("There is nothing here. Head back to the converter to upload a PDF."),
			app.Div().
				Class("not-found-actions").
				Body(
					app.A().Href("/").Class("btn-primary").Text("Convert a PDF"),
					app.A().Href("/about").Class("btn-secondary").Text("About"),
				),
		)
}
