package notify

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	texttemplate "text/template"

	"ms-storefront/internal/pricing"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = map[string]interface{}{
	"money": pricing.FormatRand,
	"deliveryLabel": func(method string) string {
		switch method {
		case "paxi":
			return "PAXI collection"
		case "door_to_door":
			return "Door-to-door delivery"
		default:
			return method
		}
	},
}

var (
	orderHTML  = htmltemplate.Must(htmltemplate.New("order.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/order.html.tmpl"))
	orderText  = texttemplate.Must(texttemplate.New("order.txt.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/order.txt.tmpl"))
	ticketHTML = htmltemplate.Must(htmltemplate.New("ticket.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/ticket.html.tmpl"))
	ticketText = texttemplate.Must(texttemplate.New("ticket.txt.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/ticket.txt.tmpl"))
)

type orderView struct {
	OrderFacts
	SupportEmail string
	Year         int
}

type ticketView struct {
	TicketFacts
	SupportEmail string
	Year         int
}

func renderOrder(v orderView) (string, string, error) {
	var h, t bytes.Buffer
	if err := orderHTML.Execute(&h, v); err != nil {
		return "", "", err
	}
	if err := orderText.Execute(&t, v); err != nil {
		return "", "", err
	}
	return h.String(), t.String(), nil
}

func renderTicket(v ticketView) (string, string, error) {
	var h, t bytes.Buffer
	if err := ticketHTML.Execute(&h, v); err != nil {
		return "", "", err
	}
	if err := ticketText.Execute(&t, v); err != nil {
		return "", "", err
	}
	return h.String(), t.String(), nil
}
