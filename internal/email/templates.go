package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Kind names a transactional or bulk email.
type Kind string

const (
	KindWelcome             Kind = "welcome"
	KindVerifyEmail         Kind = "verify_email"
	KindPasswordReset       Kind = "password_reset"
	KindOrderConfirmation   Kind = "order_confirmation"
	KindBookingConfirmation Kind = "booking_confirmation"
	KindNewsletter          Kind = "newsletter"
	KindEcoReport           Kind = "eco_report"
	KindReorderSuggestion   Kind = "reorder_suggestion"
	KindInactiveUserOffer   Kind = "inactive_user_offer"
	KindServiceReminder     Kind = "service_reminder"
)

// Data feeds a template. Every key a template references must be present.
type Data map[string]any

// Message is a rendered email ready for a transport.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Text    string
	HTML    string
}

// ItemLine is one rendered order line.
type ItemLine struct {
	Name     string
	Quantity int
	Subtotal string
}

// Promotion and Product feed the newsletter.
type Promotion struct {
	Title       string
	Description string
}

type Product struct {
	Name  string
	Price string
}

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>EkoNzims</title></head>
<body style="margin:0;padding:0;font-family:'Segoe UI',Tahoma,sans-serif;background-color:#f8f9fa;">
<table width="100%" cellpadding="0" cellspacing="0" style="padding:20px 0;"><tr><td align="center">
<table width="600" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:10px;">
<tr><td style="background:#27ae60;padding:30px;text-align:center;border-radius:10px 10px 0 0;">
<h1 style="margin:0;color:#ffffff;">EkoNzims</h1>
<p style="margin:5px 0 0;color:#ffffff;font-size:14px;">Nettoyage Écologique &amp; Produits Bio</p>
</td></tr>
<tr><td style="padding:40px 30px;">{{template "content" .}}</td></tr>
<tr><td style="background-color:#2c3e50;padding:20px;text-align:center;color:#ffffff;font-size:12px;border-radius:0 0 10px 10px;">
contact@ekonzims.com
</td></tr>
</table>
</td></tr></table>
</body>
</html>`

type templateSource struct {
	subject string
	text    string
	html    string
}

var sources = map[Kind]templateSource{
	KindWelcome: {
		subject: `Bienvenue sur EkoNzims, {{.FirstName}} !`,
		text:    "Bonjour {{.FirstName}},\n\nMerci de rejoindre EkoNzims. Découvrez nos produits et services écologiques.\n",
		html:    `<h2>Bonjour {{.FirstName}},</h2><p>Merci de rejoindre EkoNzims. Découvrez nos produits et services écologiques.</p>`,
	},
	KindVerifyEmail: {
		subject: `Confirmez votre email - EkoNzims`,
		text:    "Bonjour {{.FirstName}},\n\nConfirmez votre adresse email : {{.Link}}\nCe lien expire dans 24 heures.\n",
		html:    `<h2>Bonjour {{.FirstName}},</h2><p>Confirmez votre adresse email :</p><p><a href="{{.Link}}">Confirmer mon email</a></p><p>Ce lien expire dans 24 heures.</p>`,
	},
	KindPasswordReset: {
		subject: `Réinitialisation de mot de passe - EkoNzims`,
		text:    "Pour réinitialiser votre mot de passe : {{.Link}}\nCe lien expire dans 1 heure. Ignorez cet email si vous n'êtes pas à l'origine de la demande.\n",
		html:    `<h2>Réinitialisation de mot de passe</h2><p><a href="{{.Link}}">Choisir un nouveau mot de passe</a></p><p>Ce lien expire dans 1 heure. Ignorez cet email si vous n'êtes pas à l'origine de la demande.</p>`,
	},
	KindOrderConfirmation: {
		subject: `Confirmation de commande #{{.OrderID}} - EkoNzims`,
		text:    "Merci pour votre commande #{{.OrderID}}.\n{{range .Items}}- {{.Name}} (x{{.Quantity}}) {{.Subtotal}}€\n{{end}}Total : {{.Total}}€\n",
		html:    `<h2>Merci pour votre commande #{{.OrderID}}</h2><ul>{{range .Items}}<li><strong>{{.Name}}</strong> (x{{.Quantity}}) {{.Subtotal}}€</li>{{end}}</ul><p>Total : <strong>{{.Total}}€</strong></p>`,
	},
	KindBookingConfirmation: {
		subject: `Confirmation de réservation #{{.BookingID}} - {{.ServiceName}}`,
		text:    "Votre réservation #{{.BookingID}} pour {{.ServiceName}} est enregistrée pour le {{.ScheduledDate}}.\n",
		html:    `<h2>Réservation confirmée</h2><p>Votre réservation <strong>#{{.BookingID}}</strong> pour <strong>{{.ServiceName}}</strong> est enregistrée pour le {{.ScheduledDate}}.</p>`,
	},
	KindNewsletter: {
		subject: `Newsletter EkoNzims - Les nouveautés du mois`,
		text:    "Bonjour {{.FirstName}},\n\nPromotions :\n{{range .Promotions}}- {{.Title}} : {{.Description}}\n{{end}}\nNouveautés :\n{{range .NewProducts}}- {{.Name}} {{.Price}}€\n{{end}}",
		html:    `<h2>Bonjour {{.FirstName}},</h2><h3>Promotions</h3><ul>{{range .Promotions}}<li><strong>{{.Title}}</strong> {{.Description}}</li>{{end}}</ul><h3>Nouveautés</h3><ul>{{range .NewProducts}}<li>{{.Name}} {{.Price}}€</li>{{end}}</ul>`,
	},
	KindEcoReport: {
		subject: `Votre impact écologique - {{.MonthYear}}`,
		text:    "Votre bilan pour {{.MonthYear}} :\n- Commandes : {{.OrderCount}}\n- CO2 économisé : {{.CO2Saved}} kg\n- Plastique évité : {{.PlasticSaved}} kg\n",
		html:    `<h2>Votre bilan pour {{.MonthYear}}</h2><ul><li>Commandes : {{.OrderCount}}</li><li>CO2 économisé : {{.CO2Saved}} kg</li><li>Plastique évité : {{.PlasticSaved}} kg</li></ul>`,
	},
	KindReorderSuggestion: {
		subject: `Il est temps de renouveler {{.ProductName}} ?`,
		text:    "Vous avez commandé {{.ProductName}} le {{.OrderDate}}, il y a environ {{.Days}} jours.\nRecommandez-le en un clic : {{.Link}}\n",
		html:    `<h2>Besoin de {{.ProductName}} ?</h2><p>Vous l'avez commandé le {{.OrderDate}}, il y a environ {{.Days}} jours.</p><p><a href="{{.Link}}">Recommander</a></p>`,
	},
	KindInactiveUserOffer: {
		subject: `On vous a manqué ! 10% pour votre retour`,
		text:    "Bonjour,\n\nCela fait {{.Days}} jours que nous ne vous avons pas vu !\nPour vous accueillir de nouveau, voici 10% de réduction.\n\nCode : {{.DiscountCode}}\n\nNos produits écologiques vous attendent : {{.Link}}\n",
		html:    `<h2>On vous a manqué !</h2><p>Cela fait <strong>{{.Days}} jours</strong> que nous ne vous avons pas vu !</p><p>Pour vous accueillir de nouveau : <strong>10% de réduction</strong></p><p>Code promo : <strong>{{.DiscountCode}}</strong></p><p><a href="{{.Link}}">Découvrir les nouveautés</a></p>`,
	},
	KindServiceReminder: {
		subject: `Rappel : votre rendez-vous demain - {{.ServiceName}}`,
		text:    "Bonjour {{.FirstName}},\n\nCeci est un rappel pour votre rendez-vous demain :\n\nService : {{.ServiceName}}\nDate : {{.ScheduledDate}}\nRéférence : {{.BookingID}}\n",
		html:    `<h2>Rappel de rendez-vous</h2><p>Bonjour <strong>{{.FirstName}}</strong>,</p><p>Ceci est un rappel pour votre rendez-vous <strong>demain</strong>.</p><ul><li>Service : <strong>{{.ServiceName}}</strong></li><li>Date : <strong>{{.ScheduledDate}}</strong></li><li>Référence : <strong>{{.BookingID}}</strong></li></ul>`,
	},
}

type compiled struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var templates = compileAll()

func compileAll() map[Kind]compiled {
	out := make(map[Kind]compiled, len(sources))
	for kind, src := range sources {
		name := string(kind)
		out[kind] = compiled{
			subject: texttemplate.Must(texttemplate.New(name + ".subject").Option("missingkey=error").Parse(src.subject)),
			text:    texttemplate.Must(texttemplate.New(name + ".txt").Option("missingkey=error").Parse(src.text)),
			html:    compileHTML(name+".html", src.html),
		}
	}
	return out
}

func compileHTML(name, content string) *htmltemplate.Template {
	root := htmltemplate.Must(htmltemplate.New(name).Option("missingkey=error").Parse(layout))
	htmltemplate.Must(root.New("content").Parse(content))
	return root
}

// Kinds lists every known kind.
func Kinds() []Kind {
	return []Kind{
		KindWelcome, KindVerifyEmail, KindPasswordReset, KindOrderConfirmation,
		KindBookingConfirmation, KindNewsletter, KindEcoReport, KindReorderSuggestion,
		KindInactiveUserOffer, KindServiceReminder,
	}
}

// Render builds the message for kind addressed to to.
func Render(kind Kind, to string, data Data) (Message, error) {
	t, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown email kind %q", kind)
	}
	var subject, text, html bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", kind, err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", kind, err)
	}
	return Message{Kind: kind, To: to, Subject: subject.String(), Text: text.String(), HTML: html.String()}, nil
}
