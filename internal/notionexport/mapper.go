package notionexport

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/pennyledger/internal/domain"
)

// recurringToProperties converts one recurring charge to Notion page
// properties. The Merchant title property is the natural key the exporter
// matches existing pages on.
func recurringToProperties(r domain.RecurringTransaction) notionapi.Properties {
	props := notionapi.Properties{
		"Merchant": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: r.MerchantDisplayName,
					},
				},
			},
		},
		"Average Amount": notionapi.NumberProperty{
			Number: r.AverageAmount,
		},
		"Active": notionapi.CheckboxProperty{
			Checkbox: r.IsActive,
		},
	}

	if r.Frequency != "" {
		props["Frequency"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(r.Frequency),
			},
		}
	}

	if r.LastSeenDate.IsValid() {
		d := notionapi.Date(time.Date(
			r.LastSeenDate.Year,
			r.LastSeenDate.Month,
			r.LastSeenDate.Day,
			0, 0, 0, 0, time.UTC,
		))
		props["Last Seen"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	return props
}

// pageMerchant extracts the Merchant title text from an existing page.
func pageMerchant(page notionapi.Page) string {
	prop, ok := page.Properties["Merchant"]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return ""
	}
	return title.Title[0].PlainText
}
